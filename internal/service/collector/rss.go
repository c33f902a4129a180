package collector

import (
	"context"
	"errors"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
	"github.com/osintwatch/conflict-ingest/internal/domain/source"

	domainerrors "github.com/osintwatch/conflict-ingest/internal/domain/errors"
)

// rssStrategy fetches and parses one feed per source. Queries are
// ignored; a feed returns whatever it currently carries and the
// relevance filter downstream does the narrowing.
type rssStrategy struct {
	parser *gofeed.Parser
	window time.Duration
}

func NewRSSStrategy(window time.Duration) Strategy {
	parser := gofeed.NewParser()
	parser.UserAgent = "conflict-ingest/1.0"
	return &rssStrategy{parser: parser, window: window}
}

func (s *rssStrategy) Kind() source.Kind { return source.KindRSS }

func (s *rssStrategy) Fetch(ctx context.Context, src *source.Source, _ []string, round int) ([]*article.Article, error) {
	feed, err := s.parser.ParseURLWithContext(src.Endpoint, ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			if statusErr := checkStatus(src.Name, httpErr.StatusCode); statusErr != nil {
				return nil, statusErr
			}
		}
		// Network-level failures carry no status; they count as
		// transient and the retry budget plus health decay handle
		// persistent rot.
		return nil, domainerrors.NewTransientFetchError(src.Name, "fetching feed").WithCause(err)
	}

	cutoff := time.Now().UTC().Add(-s.window)
	var out []*article.Article
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}

		published := time.Now().UTC()
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}
		if published.Before(cutoff) {
			continue
		}

		body := item.Description
		if body == "" {
			body = item.Content
		}

		a, err := article.New(item.Link, item.Title, body, published, src.ID, round, "")
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
