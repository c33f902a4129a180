package collector

import (
	"context"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
	"github.com/osintwatch/conflict-ingest/internal/domain/source"
)

// Strategy fetches article candidates from one source. Implementations
// exist per source kind; the collector picks the strategy by the
// source's Kind and never runs two fetches against the same source
// concurrently.
type Strategy interface {
	Kind() source.Kind
	// Fetch runs the strategy against one source. RSS ignores queries;
	// the API strategies issue one request per query with the
	// configured inter-request delay.
	Fetch(ctx context.Context, src *source.Source, queries []string, round int) ([]*article.Article, error)
}
