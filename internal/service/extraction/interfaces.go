package extraction

import (
	"context"
	"time"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
	"github.com/osintwatch/conflict-ingest/internal/domain/event"
	"github.com/osintwatch/conflict-ingest/internal/service/textproc"
)

// Service turns one annotated article into zero or more event drafts.
// The model path is tried first; a schema-invalid or failed model
// response falls back to deterministic pattern extraction. Drafts carry
// a location hint for the geospatial resolver, not resolved coordinates.
type Service interface {
	Extract(ctx context.Context, art *article.Article, ann *Annotation) ([]*event.Event, error)
}

// Recorder receives per-article extraction outcomes and model call
// timings; satisfied by metrics.Registry.
type Recorder interface {
	RecordExtraction(ctx context.Context, events, round int, usedModel bool, duration time.Duration)
	RecordModelCall(ctx context.Context, duration time.Duration)
}

// Annotation is the text-processor output the extractor builds on.
type Annotation struct {
	Entities       *textproc.Entities
	EventTime      time.Time
	TimeConfidence textproc.TemporalConfidence
	Language       string

	// SourceReliability is the publishing source's score in [0,100].
	SourceReliability float64
}
