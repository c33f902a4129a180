package extraction

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
	"github.com/osintwatch/conflict-ingest/internal/domain/event"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/llm"
)

type service struct {
	completer llm.Completer // nil disables the model path
	metrics   Recorder      // nil disables recording
	logger    *zap.Logger
}

func NewService(completer llm.Completer, metrics Recorder, logger *zap.Logger) Service {
	return &service{completer: completer, metrics: metrics, logger: logger}
}

// Extract runs the model path and falls back to pattern extraction when
// the model is unavailable or its response fails validation. Extraction
// errors stay per-article; the returned error is reserved for context
// cancellation.
func (s *service) Extract(ctx context.Context, art *article.Article, ann *Annotation) ([]*event.Event, error) {
	start := time.Now()
	events, usedModel := s.tryModel(ctx, art, ann)
	if !usedModel {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		events = extractPattern(art, ann)
	}

	finalized := events[:0]
	for _, ev := range events {
		if err := ev.Finalize(); err != nil {
			s.logger.Warn("dropping invalid event draft",
				zap.String("article_id", art.ID.String()),
				zap.Error(err))
			continue
		}
		finalized = append(finalized, ev)
	}
	if s.metrics != nil {
		s.metrics.RecordExtraction(ctx, len(finalized), art.Round, usedModel, time.Since(start))
	}
	return finalized, nil
}

func (s *service) tryModel(ctx context.Context, art *article.Article, ann *Annotation) ([]*event.Event, bool) {
	if s.completer == nil {
		return nil, false
	}

	callStart := time.Now()
	raw, err := s.completer.Complete(ctx, extractionSystem,
		buildPrompt(art.Headline, art.Body, art.PublishedAt))
	if s.metrics != nil {
		s.metrics.RecordModelCall(ctx, time.Since(callStart))
	}
	if err != nil {
		s.logger.Debug("model extraction unavailable",
			zap.String("article_id", art.ID.String()),
			zap.Error(err))
		return nil, false
	}

	events, err := parseResponse(raw, art, ann)
	if err != nil {
		// Schema violation is treated as model-unavailable.
		s.logger.Debug("model response failed validation",
			zap.String("article_id", art.ID.String()),
			zap.Error(err))
		return nil, false
	}
	return events, true
}
