package registry

import (
	"context"

	"github.com/osintwatch/conflict-ingest/internal/domain/source"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/repository"
)

// Service is the source registry: the only component with mutable state
// accessed concurrently. All mutations are serialized; reads return
// snapshots.
type Service interface {
	// Load warms the in-memory view from the store and seeds any
	// missing catalog entries.
	Load(ctx context.Context) error
	// List returns snapshot copies of active sources matching filter.
	List(ctx context.Context, filter repository.SourceFilter) ([]*source.Source, error)
	// RecordSuccess updates health and access accounting after a
	// successful fetch.
	RecordSuccess(ctx context.Context, name string, articleCount int) error
	// RecordFailure decays health; at the failure threshold the source
	// deactivates.
	RecordFailure(ctx context.Context, name string, errKind string) error
	// CheckRateLimit reports whether the source may fetch now.
	CheckRateLimit(ctx context.Context, name string) (bool, error)
	// Upsert registers or updates a source, keyed on normalized name.
	Upsert(ctx context.Context, s *source.Source) error
	// Reactivate restores a deactivated source; operator-only.
	Reactivate(ctx context.Context, name string) error
}
