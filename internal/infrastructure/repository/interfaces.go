package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
	"github.com/osintwatch/conflict-ingest/internal/domain/audit"
	"github.com/osintwatch/conflict-ingest/internal/domain/event"
	"github.com/osintwatch/conflict-ingest/internal/domain/source"
)

// SourceFilter restricts List to a kind or language; zero value means
// all active sources.
type SourceFilter struct {
	Kind     *source.Kind
	Language string
	// IncludeInactive lists deactivated sources too (operator surface).
	IncludeInactive bool
}

// SourceRepository owns persistent source rows; keyed on normalized name.
type SourceRepository interface {
	Upsert(ctx context.Context, s *source.Source) error
	GetByName(ctx context.Context, name string) (*source.Source, error)
	List(ctx context.Context, filter SourceFilter) ([]*source.Source, error)
	// UpdateHealth writes the mutable health-tracking fields after a
	// fetch attempt.
	UpdateHealth(ctx context.Context, s *source.Source) error
	// Reactivate is the operator-only path back into rotation.
	Reactivate(ctx context.Context, name string) error
}

// ArticleRepository owns articles_raw; inserts are idempotent on
// content hash.
type ArticleRepository interface {
	// Upsert stores the article keyed on content hash and returns the
	// stored id; a duplicate insert silently resolves to the existing id.
	Upsert(ctx context.Context, a *article.Article) (uuid.UUID, error)
	URLExists(ctx context.Context, canonicalURL string) (bool, error)
	HashExists(ctx context.Context, contentHash string) (bool, error)
}

// EventFilter narrows read queries over stored events.
type EventFilter struct {
	MinEscalation int
	SinceHours    int
	Limit         int
}

// EventRepository owns events and event_groups. Batch writes are atomic,
// retried once, then spooled and skipped.
type EventRepository interface {
	InsertEvents(ctx context.Context, events []*event.Event) error
	InsertEventGroups(ctx context.Context, groups []*event.EventGroup) error
	// SetGroupID adjusts the cluster-membership pointer, the only
	// post-persistence mutation events allow.
	SetGroupID(ctx context.Context, eventID, groupID uuid.UUID) error
	// HighEscalationSnapshot returns events at or above minScore for the
	// alerting pass.
	HighEscalationSnapshot(ctx context.Context, minScore int) ([]*event.Event, error)
	Query(ctx context.Context, filter EventFilter) ([]*event.Event, error)
}

// QueryAuditRepository is append-only.
type QueryAuditRepository interface {
	Append(ctx context.Context, entry *audit.SearchQueryAudit) error
	ListByCycle(ctx context.Context, cycleID uuid.UUID) ([]*audit.SearchQueryAudit, error)
}

// Store aggregates the repositories the orchestrator needs.
type Store struct {
	Sources  SourceRepository
	Articles ArticleRepository
	Events   EventRepository
	Audit    QueryAuditRepository
}
