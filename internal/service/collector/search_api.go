package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
	"github.com/osintwatch/conflict-ingest/internal/domain/source"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/config"

	domainerrors "github.com/osintwatch/conflict-ingest/internal/domain/errors"
)

// searchAPIStrategy issues one Custom Search request per query,
// restricted to the configured recency window, with the inter-request
// delay between calls.
type searchAPIStrategy struct {
	cfg        config.SearchConfig
	client     *http.Client
	interDelay time.Duration
}

func NewSearchAPIStrategy(cfg config.SearchConfig, interDelay time.Duration) Strategy {
	return &searchAPIStrategy{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		interDelay: interDelay,
	}
}

func (s *searchAPIStrategy) Kind() source.Kind { return source.KindSearchAPI }

type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (s *searchAPIStrategy) Fetch(ctx context.Context, src *source.Source, queries []string, round int) ([]*article.Article, error) {
	var out []*article.Article
	for i, query := range queries {
		if i > 0 {
			select {
			case <-time.After(s.interDelay):
			case <-ctx.Done():
				return out, ctx.Err()
			}
		}

		articles, err := s.search(ctx, src, query, round)
		if err != nil {
			return nil, err
		}
		out = append(out, articles...)
	}
	return out, nil
}

func (s *searchAPIStrategy) search(ctx context.Context, src *source.Source, query string, round int) ([]*article.Article, error) {
	endpoint := s.cfg.Endpoint
	if src.Endpoint != "" {
		endpoint = src.Endpoint
	}

	params := url.Values{}
	params.Set("key", s.cfg.APIKey)
	params.Set("cx", s.cfg.EngineID)
	params.Set("q", query)
	params.Set("dateRestrict", dateRestrict(s.cfg.WindowHours))
	params.Set("num", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, domainerrors.NewPermanentFetchError(src.Name, "building search request").WithCause(err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domainerrors.NewTransientFetchError(src.Name, "search request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(src.Name, resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, domainerrors.NewParseError("decoding search response").WithCause(err)
	}

	now := time.Now().UTC()
	var out []*article.Article
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}
		a, err := article.New(item.Link, item.Title, item.Snippet, now, src.ID, round, query)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// dateRestrict maps the recency window onto the API's coarse day
// granularity, rounding up.
func dateRestrict(windowHours int) string {
	days := (windowHours + 23) / 24
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf("d%d", days)
}

// checkStatus maps HTTP status classes to the error taxonomy: 5xx and
// 429 are retryable, other 4xx are terminal for this pass.
func checkStatus(sourceName string, status int) error {
	switch {
	case status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return domainerrors.NewTransientFetchError(sourceName,
			fmt.Sprintf("upstream returned status %d", status))
	default:
		return domainerrors.NewPermanentFetchError(sourceName,
			fmt.Sprintf("upstream returned status %d", status))
	}
}
