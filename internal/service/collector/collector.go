package collector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
	"github.com/osintwatch/conflict-ingest/internal/domain/source"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/config"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/repository"
	"github.com/osintwatch/conflict-ingest/internal/service/registry"

	domainerrors "github.com/osintwatch/conflict-ingest/internal/domain/errors"
)

// FetchRecorder receives per-source fetch outcomes; satisfied by
// metrics.Registry.
type FetchRecorder interface {
	RecordFetch(ctx context.Context, sourceName string, articles int, duration time.Duration, err error)
}

// Collector fans queries out across the active sources. Global
// concurrency is bounded by maxConcurrentRequests; each source is
// fetched by exactly one goroutine. Failed sources contribute zero
// articles and a health decay, never an aborted run.
type Collector struct {
	registry   registry.Service
	strategies map[source.Kind]Strategy
	cfg        config.PipelineConfig
	metrics    FetchRecorder // nil disables recording
	logger     *zap.Logger
}

func New(reg registry.Service, strategies []Strategy, cfg config.PipelineConfig, logger *zap.Logger) *Collector {
	byKind := make(map[source.Kind]Strategy, len(strategies))
	for _, s := range strategies {
		byKind[s.Kind()] = s
	}
	return &Collector{
		registry:   reg,
		strategies: byKind,
		cfg:        cfg,
		logger:     logger,
	}
}

// WithMetrics attaches the fetch recorder.
func (c *Collector) WithMetrics(m FetchRecorder) *Collector {
	c.metrics = m
	return c
}

// SourceError is one per-source diagnostic from a collection pass.
type SourceError struct {
	SourceName string
	Err        error
}

// Collect runs one collection pass and returns the gathered candidates
// plus per-source diagnostics. The result is capped at MaxArticlesPerRun.
func (c *Collector) Collect(ctx context.Context, queries []string, round int) ([]*article.Article, []SourceError) {
	sources, err := c.registry.List(ctx, repository.SourceFilter{})
	if err != nil {
		return nil, []SourceError{{SourceName: "registry", Err: err}}
	}

	out := make(chan *article.Article, 2*c.cfg.BatchSize)
	errs := make(chan SourceError, len(sources))
	sem := make(chan struct{}, c.cfg.MaxConcurrentRequests)

	var wg sync.WaitGroup
	for _, src := range sources {
		strategy, ok := c.strategies[src.Kind]
		if !ok {
			continue
		}

		allowed, err := c.registry.CheckRateLimit(ctx, src.Name)
		if err != nil {
			errs <- SourceError{SourceName: src.Name, Err: err}
			continue
		}
		if !allowed {
			c.logger.Debug("source rate limited, skipping",
				zap.String("source", src.Name))
			continue
		}

		wg.Add(1)
		go func(src *source.Source) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			start := time.Now()
			articles, err := c.fetchWithRetry(ctx, strategy, src, queries, round)
			if c.metrics != nil {
				c.metrics.RecordFetch(ctx, src.Name, len(articles), time.Since(start), err)
			}
			if err != nil {
				errs <- SourceError{SourceName: src.Name, Err: err}
				if rerr := c.registry.RecordFailure(ctx, src.Name, errorKind(err)); rerr != nil {
					c.logger.Warn("recording source failure",
						zap.String("source", src.Name), zap.Error(rerr))
				}
				return
			}

			if rerr := c.registry.RecordSuccess(ctx, src.Name, len(articles)); rerr != nil {
				c.logger.Warn("recording source success",
					zap.String("source", src.Name), zap.Error(rerr))
			}
			for _, a := range articles {
				a.SourceID = src.ID
				a.SourceName = src.Name
				select {
				case out <- a:
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}

	go func() {
		wg.Wait()
		close(out)
		close(errs)
	}()

	var collected []*article.Article
	for a := range out {
		if len(collected) < c.cfg.MaxArticlesPerRun {
			collected = append(collected, a)
		}
	}

	var sourceErrs []SourceError
	for e := range errs {
		sourceErrs = append(sourceErrs, e)
	}
	return collected, sourceErrs
}

// fetchWithRetry retries transient failures with exponential backoff
// baseDelay·2^attempt. Permanent failures and context cancellation stop
// immediately.
func (c *Collector) fetchWithRetry(ctx context.Context, strategy Strategy, src *source.Source, queries []string, round int) ([]*article.Article, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBaseDelay() * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		articles, err := strategy.Fetch(ctx, src, queries, round)
		if err == nil {
			return articles, nil
		}
		lastErr = err
		if !domainerrors.IsRetryable(err) {
			break
		}
		c.logger.Debug("retrying source fetch",
			zap.String("source", src.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

func errorKind(err error) string {
	switch {
	case domainerrors.IsType(err, domainerrors.ErrorTypeFetchTransient):
		return string(domainerrors.ErrorTypeFetchTransient)
	case domainerrors.IsType(err, domainerrors.ErrorTypeFetchPermanent):
		return string(domainerrors.ErrorTypeFetchPermanent)
	case domainerrors.IsType(err, domainerrors.ErrorTypeParse):
		return string(domainerrors.ErrorTypeParse)
	default:
		return string(domainerrors.ErrorTypeInternal)
	}
}
