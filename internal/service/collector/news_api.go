package collector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
	"github.com/osintwatch/conflict-ingest/internal/domain/source"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/config"

	domainerrors "github.com/osintwatch/conflict-ingest/internal/domain/errors"
)

// newsAPIStrategy queries the everything endpoint once per query cohort
// over the recency window, newest first.
type newsAPIStrategy struct {
	cfg         config.NewsConfig
	windowHours int
	client      *http.Client
	interDelay  time.Duration
}

func NewNewsAPIStrategy(cfg config.NewsConfig, windowHours int, interDelay time.Duration) Strategy {
	return &newsAPIStrategy{
		cfg:         cfg,
		windowHours: windowHours,
		client:      &http.Client{Timeout: cfg.Timeout},
		interDelay:  interDelay,
	}
}

func (s *newsAPIStrategy) Kind() source.Kind { return source.KindNewsAPI }

type newsResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (s *newsAPIStrategy) Fetch(ctx context.Context, src *source.Source, queries []string, round int) ([]*article.Article, error) {
	var out []*article.Article
	for i, query := range queries {
		if i > 0 {
			select {
			case <-time.After(s.interDelay):
			case <-ctx.Done():
				return out, ctx.Err()
			}
		}

		articles, err := s.query(ctx, src, query, round)
		if err != nil {
			return nil, err
		}
		out = append(out, articles...)
	}
	return out, nil
}

func (s *newsAPIStrategy) query(ctx context.Context, src *source.Source, query string, round int) ([]*article.Article, error) {
	endpoint := s.cfg.Endpoint
	if src.Endpoint != "" {
		endpoint = src.Endpoint
	}

	from := time.Now().UTC().Add(-time.Duration(s.windowHours) * time.Hour)
	params := url.Values{}
	params.Set("q", query)
	params.Set("from", from.Format(time.RFC3339))
	params.Set("sortBy", "publishedAt")
	params.Set("language", src.Language)
	params.Set("pageSize", "25")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, domainerrors.NewPermanentFetchError(src.Name, "building news request").WithCause(err)
	}
	req.Header.Set("X-Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domainerrors.NewTransientFetchError(src.Name, "news request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(src.Name, resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	var parsed newsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, domainerrors.NewParseError("decoding news response").WithCause(err)
	}

	var out []*article.Article
	for _, item := range parsed.Articles {
		if item.URL == "" {
			continue
		}
		published := time.Now().UTC()
		if ts, err := time.Parse(time.RFC3339, item.PublishedAt); err == nil {
			published = ts.UTC()
		}
		a, err := article.New(item.URL, item.Title, item.Description, published, src.ID, round, query)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
