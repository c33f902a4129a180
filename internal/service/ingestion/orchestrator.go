package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
	"github.com/osintwatch/conflict-ingest/internal/domain/audit"
	"github.com/osintwatch/conflict-ingest/internal/domain/event"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/cache"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/config"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/repository"
	"github.com/osintwatch/conflict-ingest/internal/metrics"
	"github.com/osintwatch/conflict-ingest/internal/service/collector"
	"github.com/osintwatch/conflict-ingest/internal/service/extraction"
	"github.com/osintwatch/conflict-ingest/internal/service/registry"
	"github.com/osintwatch/conflict-ingest/internal/service/textproc"
)

// ArticleCollector is the collection fan-out; satisfied by
// collector.Collector.
type ArticleCollector interface {
	Collect(ctx context.Context, queries []string, round int) ([]*article.Article, []collector.SourceError)
}

// LocationResolver is the geospatial strategy chain; satisfied by
// geo.Resolver.
type LocationResolver interface {
	Resolve(ctx context.Context, text, hintName, hintCountry string) *event.Location
}

// EventClusterer groups one run's events; satisfied by
// clustering.Clusterer.
type EventClusterer interface {
	Cluster(events []*event.Event) []*event.EventGroup
}

// Alerter is the post-merge alerting pass; satisfied by
// alerting.Emitter.
type Alerter interface {
	ResetCycle()
	EmitAll(ctx context.Context, events []*event.Event) int
}

// Options tune one cycle.
type Options struct {
	// DryRun runs collection and extraction but writes nothing and
	// emits no alerts.
	DryRun bool
	// MaxArticles caps admitted articles below the configured limit;
	// zero means use the config value.
	MaxArticles int
}

// CycleStats is the structured outcome of one cycle. A cycle never
// returns an error to the scheduler short of cancellation; failures
// land in Errors.
type CycleStats struct {
	CycleID    uuid.UUID `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	ArticlesFetchedRound1 int `json:"articles_fetched_round1"`
	ArticlesFetchedRound2 int `json:"articles_fetched_round2"`
	ArticlesAdmitted      int `json:"articles_admitted"`
	ArticlesRelevant      int `json:"articles_relevant"`

	EventsRound1 int `json:"events_round1"`
	EventsRound2 int `json:"events_round2"`
	Groups       int `json:"groups"`

	// CoverageBoost = round-2 events / max(1, round-1 events).
	CoverageBoost float64 `json:"coverage_boost"`
	AlertsEmitted int     `json:"alerts_emitted"`

	Errors []string `json:"errors,omitempty"`
}

// Orchestrator drives the two-round pipeline:
// collect → dedup → annotate → extract → georesolve → cluster → persist,
// then a targeted second round mined from round-1 events, then alerts.
type Orchestrator struct {
	cfg       *config.Config
	registry  registry.Service
	collector ArticleCollector
	dedup     cache.DedupIndex
	processor *textproc.Processor
	extractor extraction.Service
	resolver  LocationResolver
	clusterer EventClusterer
	store     repository.Store
	alerter   Alerter
	metrics   *metrics.Registry // optional
	logger    *zap.Logger
}

func NewOrchestrator(
	cfg *config.Config,
	reg registry.Service,
	col ArticleCollector,
	dedup cache.DedupIndex,
	processor *textproc.Processor,
	extractor extraction.Service,
	resolver LocationResolver,
	clusterer EventClusterer,
	store repository.Store,
	alerter Alerter,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		registry:  reg,
		collector: col,
		dedup:     dedup,
		processor: processor,
		extractor: extractor,
		resolver:  resolver,
		clusterer: clusterer,
		store:     store,
		alerter:   alerter,
		logger:    logger,
	}
}

// WithMetrics attaches the instrument registry; nil leaves recording
// disabled.
func (o *Orchestrator) WithMetrics(m *metrics.Registry) *Orchestrator {
	o.metrics = m
	return o
}

// RunCycle executes one full ingestion cycle. Two invocations in the
// same window converge on the same persisted state: duplicates are
// absorbed by the dedup index and the content-hash constraint.
func (o *Orchestrator) RunCycle(ctx context.Context, opts Options) (*CycleStats, error) {
	stats := &CycleStats{
		CycleID:   uuid.New(),
		StartedAt: time.Now().UTC(),
	}
	defer func() { stats.FinishedAt = time.Now().UTC() }()

	o.alerter.ResetCycle()
	o.dedup.Prune(time.Now().UTC())
	if o.metrics != nil {
		o.metrics.SetDedupCacheSize(o.dedup.Size())
	}

	reliability := o.sourceReliability(ctx)

	admit := o.dedup.Admit
	if opts.DryRun {
		admit = o.dryRunAdmit()
	}

	round1Queries := broadQueries(o.cfg.ConflictZones)
	round1Events := o.runRound(ctx, stats, opts, admit, round1Queries, 1, reliability)
	stats.EventsRound1 = len(round1Events)

	allEvents := round1Events
	if o.cfg.Pipeline.SecondRoundEnabled && len(round1Events) > 0 && ctx.Err() == nil {
		mined := mineEntities(round1Events)
		round2Queries := targetedQueries(mined, round1Queries)
		if len(round2Queries) > 0 {
			round2Events := o.runRound(ctx, stats, opts, admit, round2Queries, 2, reliability)
			stats.EventsRound2 = len(round2Events)
			allEvents = append(allEvents, round2Events...)
		}
	}

	stats.CoverageBoost = float64(stats.EventsRound2) / max(1, float64(stats.EventsRound1))

	if !opts.DryRun {
		stats.AlertsEmitted = o.alerter.EmitAll(ctx, allEvents)
	}

	if o.metrics != nil {
		o.metrics.RecordCycle(ctx, time.Since(stats.StartedAt),
			stats.Groups, stats.AlertsEmitted, stats.CoverageBoost)
	}

	o.logger.Info("cycle complete",
		zap.String("cycle_id", stats.CycleID.String()),
		zap.Int("events_round1", stats.EventsRound1),
		zap.Int("events_round2", stats.EventsRound2),
		zap.Int("groups", stats.Groups),
		zap.Int("alerts", stats.AlertsEmitted),
		zap.Int("errors", len(stats.Errors)))

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// admitFunc decides whether one article enters the pipeline.
type admitFunc func(ctx context.Context, a *article.Article) (bool, error)

// dryRunAdmit checks the shared dedup tiers without recording anything,
// so a dry run never seeds the caches against a later real cycle.
// Within-run duplicates are tracked in a run-local set instead.
func (o *Orchestrator) dryRunAdmit() admitFunc {
	local := make(map[string]bool)
	return func(ctx context.Context, a *article.Article) (bool, error) {
		if local[a.URL] || local[a.ContentHash] {
			return false, nil
		}
		seen, err := o.dedup.Observe(ctx, a)
		if err != nil || seen {
			return false, err
		}
		local[a.URL] = true
		local[a.ContentHash] = true
		return true, nil
	}
}

// runRound executes collect → filter → extract → cluster → persist for
// one round and returns the round's finalized events.
func (o *Orchestrator) runRound(ctx context.Context, stats *CycleStats, opts Options, admit admitFunc, queries []string, round int, reliability map[string]float64) []*event.Event {
	articles, sourceErrs := o.collector.Collect(ctx, queries, round)
	for _, se := range sourceErrs {
		stats.Errors = append(stats.Errors,
			fmt.Sprintf("round %d source %s: %v", round, se.SourceName, se.Err))
	}
	if round == 1 {
		stats.ArticlesFetchedRound1 = len(articles)
	} else {
		stats.ArticlesFetchedRound2 = len(articles)
	}

	o.auditQueries(ctx, stats, opts, queries, round, articles)

	limit := o.cfg.Pipeline.MaxArticlesPerRun
	if opts.MaxArticles > 0 && opts.MaxArticles < limit {
		limit = opts.MaxArticles
	}

	var events []*event.Event
	admitted := 0
	for _, art := range articles {
		if ctx.Err() != nil {
			break
		}
		if admitted >= limit {
			break
		}

		ok, err := admit(ctx, art)
		if err != nil {
			stats.Errors = append(stats.Errors,
				fmt.Sprintf("round %d dedup %s: %v", round, art.URL, err))
			continue
		}
		if !ok {
			if o.metrics != nil {
				o.metrics.DuplicatesSeen.Add(ctx, 1)
			}
			continue
		}
		admitted++
		stats.ArticlesAdmitted++
		if o.metrics != nil {
			o.metrics.ArticlesAdmitted.Add(ctx, 1)
		}

		evs := o.processArticle(ctx, stats, opts, art, round, reliability)
		events = append(events, evs...)
	}

	if len(events) > 0 {
		o.persistRound(ctx, stats, opts, events)
	}
	return events
}

// processArticle runs annotate → extract → georesolve for one admitted
// article. Per-article failures are logged and skipped.
func (o *Orchestrator) processArticle(ctx context.Context, stats *CycleStats, opts Options, art *article.Article, round int, reliability map[string]float64) []*event.Event {
	text := art.Headline + " " + art.Body

	relevance := o.processor.ScoreRelevance(text)
	if relevance < o.cfg.Pipeline.RelevanceThreshold {
		if o.metrics != nil {
			o.metrics.RelevanceDrops.Add(ctx, 1)
		}
		return nil
	}
	stats.ArticlesRelevant++

	art.Language = o.processor.DetectLanguage(text)

	if !opts.DryRun {
		storedID, err := o.store.Articles.Upsert(ctx, art)
		if err != nil {
			stats.Errors = append(stats.Errors,
				fmt.Sprintf("round %d article %s: %v", round, art.URL, err))
			return nil
		}
		art.ID = storedID
	}

	entities := o.processor.ExtractEntities(ctx, text)
	eventTime, timeConf := o.processor.ExtractTemporal(text, art.PublishedAt)

	ann := &extraction.Annotation{
		Entities:          entities,
		EventTime:         eventTime,
		TimeConfidence:    timeConf,
		Language:          art.Language,
		SourceReliability: reliability[art.SourceName],
	}

	events, err := o.extractor.Extract(ctx, art, ann)
	if err != nil {
		stats.Errors = append(stats.Errors,
			fmt.Sprintf("round %d extract %s: %v", round, art.URL, err))
		return nil
	}

	kept := events[:0]
	for _, ev := range events {
		o.resolveLocation(ctx, ev, text)
		if ev.Location == nil && o.cfg.Pipeline.RequireLocation {
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}

// resolveLocation replaces the extractor's hint with resolved
// coordinates. Unresolvable hints leave the event locationless; the
// requireLocation policy decides its fate.
func (o *Orchestrator) resolveLocation(ctx context.Context, ev *event.Event, text string) {
	if ev.Location == nil {
		return
	}
	resolved := o.resolver.Resolve(ctx, text, ev.Location.Name, ev.Location.Country)
	if resolved == nil {
		if o.cfg.Pipeline.RequireLocation {
			ev.Location = nil
			return
		}
		ev.Location.Method = event.MethodUnresolved
		ev.Location.Confidence = 0
		return
	}
	ev.Location = resolved
}

// persistRound clusters the round's events and writes events then
// groups. Persistence failures are absorbed by the repository's
// retry-and-spool path; anything surfacing here is recorded.
func (o *Orchestrator) persistRound(ctx context.Context, stats *CycleStats, opts Options, events []*event.Event) {
	groups := o.clusterer.Cluster(events)
	stats.Groups += len(groups)
	if opts.DryRun {
		return
	}

	if err := o.store.Events.InsertEvents(ctx, events); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("persisting events: %v", err))
	}
	if err := o.store.Events.InsertEventGroups(ctx, groups); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("persisting groups: %v", err))
	}
}

func (o *Orchestrator) auditQueries(ctx context.Context, stats *CycleStats, opts Options, queries []string, round int, articles []*article.Article) {
	if opts.DryRun {
		return
	}

	kind := audit.QueryKindBroad
	if round == 2 {
		kind = audit.QueryKindTargeted
	}

	counts := map[string]int{}
	for _, a := range articles {
		counts[a.Query]++
	}

	for _, q := range queries {
		entry := audit.NewQueryAudit(stats.CycleID, q, kind, round, counts[q], nil)
		if err := o.store.Audit.Append(ctx, entry); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("query audit: %v", err))
			continue
		}
	}
}

// sourceReliability snapshots each active source's reliability score
// for the extraction annotations.
func (o *Orchestrator) sourceReliability(ctx context.Context) map[string]float64 {
	out := map[string]float64{}
	sources, err := o.registry.List(ctx, repository.SourceFilter{})
	if err != nil {
		o.logger.Warn("listing sources for reliability snapshot", zap.Error(err))
		return out
	}
	for _, s := range sources {
		out[s.Name] = s.Reliability
	}
	if o.metrics != nil {
		o.metrics.SetActiveSources(len(sources))
	}
	return out
}
