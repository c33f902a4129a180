package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the pipeline's instruments. Observable gauges read
// the shared state fields; everything else is recorded at call sites.
type Registry struct {
	meter metric.Meter

	// Collection
	FetchDuration     metric.Float64Histogram
	ArticlesFetched   metric.Int64Counter
	SourceFailures    metric.Int64Counter
	ActiveSources     metric.Int64ObservableGauge
	ArticlesPerSecond metric.Float64ObservableGauge

	// Dedup & filtering
	ArticlesAdmitted metric.Int64Counter
	DuplicatesSeen   metric.Int64Counter
	RelevanceDrops   metric.Int64Counter
	DedupCacheSize   metric.Int64ObservableGauge

	// Extraction & model
	ExtractionDuration metric.Float64Histogram
	EventsExtracted    metric.Int64Counter
	ModelFallbacks     metric.Int64Counter
	ModelCallDuration  metric.Float64Histogram

	// Cycle outcomes
	CycleDuration  metric.Float64Histogram
	GroupsFormed   metric.Int64Counter
	AlertsEmitted  metric.Int64Counter
	SpooledBatches metric.Int64Counter
	CoverageBoost  metric.Float64ObservableGauge

	// State for observable metrics
	mu             sync.RWMutex
	activeSources  int64
	dedupCacheSize int64
	coverageBoost  float64
	articlesSeen   int64
	lastArticles   int64
	lastArticleAt  time.Time
}

// NewRegistry creates the registry against the named meter.
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{
		meter:         otel.Meter(meterName),
		lastArticleAt: time.Now(),
	}

	if err := r.initCollectionMetrics(); err != nil {
		return nil, err
	}
	if err := r.initFilteringMetrics(); err != nil {
		return nil, err
	}
	if err := r.initExtractionMetrics(); err != nil {
		return nil, err
	}
	if err := r.initCycleMetrics(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initCollectionMetrics() error {
	var err error

	r.FetchDuration, err = r.meter.Float64Histogram(
		"ingest.collect.fetch_duration",
		metric.WithDescription("Duration of one source fetch in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000),
	)
	if err != nil {
		return err
	}

	r.ArticlesFetched, err = r.meter.Int64Counter(
		"ingest.collect.articles_total",
		metric.WithDescription("Total article candidates fetched"),
	)
	if err != nil {
		return err
	}

	r.SourceFailures, err = r.meter.Int64Counter(
		"ingest.collect.source_failures_total",
		metric.WithDescription("Total per-source fetch failures"),
	)
	if err != nil {
		return err
	}

	r.ActiveSources, err = r.meter.Int64ObservableGauge(
		"ingest.collect.active_sources",
		metric.WithDescription("Sources currently active in the registry"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.activeSources)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.ArticlesPerSecond, err = r.meter.Float64ObservableGauge(
		"ingest.collect.articles_per_second",
		metric.WithDescription("Current article intake rate"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			r.mu.Lock()
			defer r.mu.Unlock()

			now := time.Now()
			elapsed := now.Sub(r.lastArticleAt).Seconds()
			if elapsed > 0 {
				o.Observe(float64(r.articlesSeen-r.lastArticles) / elapsed)
				r.lastArticles = r.articlesSeen
				r.lastArticleAt = now
			}
			return nil
		}),
	)
	return err
}

func (r *Registry) initFilteringMetrics() error {
	var err error

	r.ArticlesAdmitted, err = r.meter.Int64Counter(
		"ingest.dedup.admitted_total",
		metric.WithDescription("Articles admitted past the dedup index"),
	)
	if err != nil {
		return err
	}

	r.DuplicatesSeen, err = r.meter.Int64Counter(
		"ingest.dedup.duplicates_total",
		metric.WithDescription("Articles rejected as duplicates"),
	)
	if err != nil {
		return err
	}

	r.RelevanceDrops, err = r.meter.Int64Counter(
		"ingest.filter.relevance_drops_total",
		metric.WithDescription("Articles dropped below the relevance threshold"),
	)
	if err != nil {
		return err
	}

	r.DedupCacheSize, err = r.meter.Int64ObservableGauge(
		"ingest.dedup.cache_entries",
		metric.WithDescription("Entries in the rolling dedup cache"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.dedupCacheSize)
			return nil
		}),
	)
	return err
}

func (r *Registry) initExtractionMetrics() error {
	var err error

	r.ExtractionDuration, err = r.meter.Float64Histogram(
		"ingest.extract.duration",
		metric.WithDescription("Duration of per-article event extraction in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 500, 1000, 5000, 15000, 60000),
	)
	if err != nil {
		return err
	}

	r.EventsExtracted, err = r.meter.Int64Counter(
		"ingest.extract.events_total",
		metric.WithDescription("Total events extracted, labeled by path and round"),
	)
	if err != nil {
		return err
	}

	r.ModelFallbacks, err = r.meter.Int64Counter(
		"ingest.extract.model_fallbacks_total",
		metric.WithDescription("Extractions that fell back to pattern matching"),
	)
	if err != nil {
		return err
	}

	r.ModelCallDuration, err = r.meter.Float64Histogram(
		"ingest.model.call_duration",
		metric.WithDescription("Duration of model API calls in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 2500, 5000, 15000, 30000, 60000),
	)
	return err
}

func (r *Registry) initCycleMetrics() error {
	var err error

	r.CycleDuration, err = r.meter.Float64Histogram(
		"ingest.cycle.duration",
		metric.WithDescription("Duration of a full ingestion cycle in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(5, 15, 30, 60, 120, 300, 600, 1800),
	)
	if err != nil {
		return err
	}

	r.GroupsFormed, err = r.meter.Int64Counter(
		"ingest.cycle.groups_total",
		metric.WithDescription("Event groups formed by clustering"),
	)
	if err != nil {
		return err
	}

	r.AlertsEmitted, err = r.meter.Int64Counter(
		"ingest.cycle.alerts_total",
		metric.WithDescription("Alerts emitted, labeled by reason"),
	)
	if err != nil {
		return err
	}

	r.SpooledBatches, err = r.meter.Int64Counter(
		"ingest.persist.spooled_batches_total",
		metric.WithDescription("Batches spooled after exhausting persistence retries"),
	)
	if err != nil {
		return err
	}

	r.CoverageBoost, err = r.meter.Float64ObservableGauge(
		"ingest.cycle.coverage_boost",
		metric.WithDescription("Round-2 events relative to round-1 events, last cycle"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.coverageBoost)
			return nil
		}),
	)
	return err
}

// RecordFetch records one source fetch outcome.
func (r *Registry) RecordFetch(ctx context.Context, sourceName string, articles int, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("source", sourceName))
	r.FetchDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		r.SourceFailures.Add(ctx, 1, attrs)
		return
	}
	r.ArticlesFetched.Add(ctx, int64(articles), attrs)
	r.mu.Lock()
	r.articlesSeen += int64(articles)
	r.mu.Unlock()
}

// RecordExtraction records one article's extraction outcome.
func (r *Registry) RecordExtraction(ctx context.Context, events, round int, usedModel bool, duration time.Duration) {
	path := "model"
	if !usedModel {
		path = "pattern"
		r.ModelFallbacks.Add(ctx, 1)
	}
	attrs := metric.WithAttributes(
		attribute.String("path", path),
		attribute.Int("round", round),
	)
	r.ExtractionDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	r.EventsExtracted.Add(ctx, int64(events), attrs)
}

// RecordModelCall records one model API round trip.
func (r *Registry) RecordModelCall(ctx context.Context, duration time.Duration) {
	r.ModelCallDuration.Record(ctx, float64(duration.Milliseconds()))
}

// RecordSpool counts one batch written to the offline spool.
func (r *Registry) RecordSpool(ctx context.Context, table string) {
	r.SpooledBatches.Add(ctx, 1, metric.WithAttributes(attribute.String("table", table)))
}

// RecordCycle records a completed cycle.
func (r *Registry) RecordCycle(ctx context.Context, duration time.Duration, groups, alerts int, coverageBoost float64) {
	r.CycleDuration.Record(ctx, duration.Seconds())
	r.GroupsFormed.Add(ctx, int64(groups))
	r.AlertsEmitted.Add(ctx, int64(alerts))
	r.mu.Lock()
	r.coverageBoost = coverageBoost
	r.mu.Unlock()
}

// SetActiveSources updates the registry-size gauge state.
func (r *Registry) SetActiveSources(n int) {
	r.mu.Lock()
	r.activeSources = int64(n)
	r.mu.Unlock()
}

// SetDedupCacheSize updates the dedup gauge state.
func (r *Registry) SetDedupCacheSize(n int) {
	r.mu.Lock()
	r.dedupCacheSize = int64(n)
	r.mu.Unlock()
}
