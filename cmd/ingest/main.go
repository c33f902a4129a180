package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	domainerrors "github.com/osintwatch/conflict-ingest/internal/domain/errors"
	"github.com/osintwatch/conflict-ingest/internal/domain/event"
	"github.com/osintwatch/conflict-ingest/internal/domain/source"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/cache"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/config"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/database"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/geocode"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/llm"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/repository"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/telemetry"
	"github.com/osintwatch/conflict-ingest/internal/metrics"
	"github.com/osintwatch/conflict-ingest/internal/service/alerting"
	"github.com/osintwatch/conflict-ingest/internal/service/clustering"
	"github.com/osintwatch/conflict-ingest/internal/service/collector"
	"github.com/osintwatch/conflict-ingest/internal/service/extraction"
	"github.com/osintwatch/conflict-ingest/internal/service/geo"
	"github.com/osintwatch/conflict-ingest/internal/service/ingestion"
	"github.com/osintwatch/conflict-ingest/internal/service/registry"
	"github.com/osintwatch/conflict-ingest/internal/service/textproc"
)

const usageText = `Usage: ingest <command> [flags]

Commands:
  ingest    run one ingestion cycle
  monitor   run cycles on an interval until interrupted
  events    list stored events
  sources   inspect or reactivate sources

Run 'ingest <command> -h' for command flags.
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		slog.Error("failed to setup logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	switch os.Args[1] {
	case "ingest":
		err = runIngest(ctx, cfg, os.Args[2:])
	case "monitor":
		err = runMonitor(ctx, cfg, os.Args[2:])
	case "events":
		err = runEvents(ctx, cfg, os.Args[2:])
	case "sources":
		err = runSources(ctx, cfg, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usageText)
		os.Exit(2)
	}

	if err != nil {
		var cfgErr *domainerrors.ConfigError
		if errors.As(err, &cfgErr) {
			slog.Error("configuration invalid", "missing", cfgErr.MissingKeys)
			os.Exit(1)
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("command failed", "error", err)
		os.Exit(2)
	}
}

func runIngest(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	var (
		dryRun  = fs.Bool("dry-run", false, "collect and extract but write nothing, emit no alerts")
		verbose = fs.Bool("verbose", false, "debug logging")
		limit   = fs.Int("limit", 0, "cap admitted articles below the configured maximum")
		srcName = fs.String("source", "", "restrict collection to one source")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	p, err := buildPipeline(ctx, cfg, pipelineOptions{
		verbose:    *verbose,
		sourceName: *srcName,
	})
	if err != nil {
		return err
	}
	defer p.close()

	stats, err := p.orchestrator.RunCycle(ctx, ingestion.Options{
		DryRun:      *dryRun,
		MaxArticles: *limit,
	})
	if err != nil {
		return err
	}

	telemetry.WithContext(ctx, slog.Default()).Info("cycle finished",
		"cycle_id", stats.CycleID,
		"articles_admitted", stats.ArticlesAdmitted,
		"events_round1", stats.EventsRound1,
		"events_round2", stats.EventsRound2,
		"groups", stats.Groups,
		"alerts", stats.AlertsEmitted,
		"errors", len(stats.Errors))
	return nil
}

func runMonitor(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	var (
		interval = fs.Duration("interval", 30*time.Minute, "time between cycle starts")
		alerts   = fs.Bool("alerts", true, "emit alerts for qualifying events")
		verbose  = fs.Bool("verbose", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	p, err := buildPipeline(ctx, cfg, pipelineOptions{
		verbose:     *verbose,
		alertsMuted: !*alerts,
	})
	if err != nil {
		return err
	}
	defer p.close()

	telemetry.WithContext(ctx, slog.Default()).Info("monitor started", "interval", interval.String())
	scheduler := ingestion.NewScheduler(p.orchestrator, *interval, p.zap)
	return scheduler.Run(ctx, ingestion.Options{})
}

func runEvents(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	var (
		since  = fs.Int("since", 24, "only events from the last N hours (0 = all)")
		minEsc = fs.Int("min-escalation", 1, "minimum escalation score")
		limit  = fs.Int("limit", 50, "maximum rows (0 = all)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, cleanup, err := connectStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	events, err := store.Events.Query(ctx, repository.EventFilter{
		MinEscalation: *minEsc,
		SinceHours:    *since,
		Limit:         *limit,
	})
	if err != nil {
		return err
	}

	for _, ev := range events {
		loc := "unresolved"
		if ev.Location != nil {
			loc = fmt.Sprintf("%s, %s (%.4f, %.4f)",
				ev.Location.Name, ev.Location.Country, ev.Location.Lat, ev.Location.Lng)
		}
		fmt.Printf("%s  [%d %s]  %s\n    %s\n",
			ev.Timestamp.Format(time.RFC3339), ev.EscalationScore, ev.Severity,
			loc, ev.EnhancedHeadline)
	}
	fmt.Printf("%d events\n", len(events))
	return nil
}

func runSources(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	var (
		stats      = fs.Bool("stats", false, "include health statistics")
		reactivate = fs.String("reactivate", "", "reactivate the named source")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, cleanup, err := connectStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if *reactivate != "" {
		if err := store.Sources.Reactivate(ctx, *reactivate); err != nil {
			return err
		}
		fmt.Printf("source %s reactivated\n", *reactivate)
		return nil
	}

	sources, err := store.Sources.List(ctx, repository.SourceFilter{IncludeInactive: true})
	if err != nil {
		return err
	}

	for _, s := range sources {
		state := "active"
		if !s.Active {
			state = "inactive"
		}
		if *stats {
			lastSuccess := "never"
			if s.LastSuccessAt != nil {
				lastSuccess = s.LastSuccessAt.Format(time.RFC3339)
			}
			fmt.Printf("%-28s %-10s %-8s health=%.2f failures=%d today=%d last_success=%s\n",
				s.Name, s.Kind, state, s.Health, s.ConsecutiveFailures,
				s.DailyAccessCount, lastSuccess)
			continue
		}
		fmt.Printf("%-28s %-10s %s\n", s.Name, s.Kind, state)
	}
	fmt.Printf("%d sources\n", len(sources))
	return nil
}

type pipelineOptions struct {
	verbose     bool
	sourceName  string
	alertsMuted bool
}

// pipeline holds the fully wired ingestion stack plus its teardown.
type pipeline struct {
	orchestrator *ingestion.Orchestrator
	zap          *zap.Logger
	close        func()
}

func buildPipeline(ctx context.Context, cfg *config.Config, opts pipelineOptions) (*pipeline, error) {
	zlog, err := newZapLogger(cfg, opts.verbose)
	if err != nil {
		return nil, fmt.Errorf("building service logger: %w", err)
	}

	instruments, err := metrics.NewRegistry("conflict-ingest")
	if err != nil {
		zlog.Warn("metrics registry unavailable", zap.Error(err))
		instruments = nil
	}

	pool, err := database.Connect(ctx, &cfg.Database, zlog)
	if err != nil {
		return nil, err
	}
	closers := []func(){pool.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	spool, err := repository.NewSpool(cfg.SpoolDir, zlog)
	if err != nil {
		closeAll()
		return nil, err
	}
	if instruments != nil {
		spool.WithMetrics(instruments)
	}

	store := repository.Store{
		Sources:  repository.NewSourceRepository(pool.Pgx(), zlog),
		Articles: repository.NewArticleRepository(pool.Pgx(), zlog),
		Events:   repository.NewEventRepository(pool.Pgx(), spool, zlog),
		Audit:    repository.NewQueryAuditRepository(pool.Pgx(), zlog),
	}

	// The Redis tier is optional; dedup and rate limiting degrade to
	// process-local state without it.
	var sharedLimiter cache.RateLimiter
	var dedupClient *redis.Client
	if cfg.Redis.Enabled() {
		client, err := cache.NewRedisClient(&cfg.Redis, zlog)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		sharedLimiter = cache.NewRedisRateLimiter(client, zlog)
		dedupClient = client
	}
	dedup := cache.NewDedupIndex(cfg.Pipeline.DedupWindow, dedupClient, store.Articles, zlog)

	reg := registry.NewService(store.Sources, sharedLimiter, zlog)
	if err := reg.Load(ctx); err != nil {
		closeAll()
		return nil, fmt.Errorf("loading source registry: %w", err)
	}
	var colReg registry.Service = reg
	if opts.sourceName != "" {
		colReg = &singleSourceRegistry{Service: reg, name: source.Normalize(opts.sourceName)}
	}

	window := time.Duration(cfg.Search.WindowHours) * time.Hour
	col := collector.New(colReg, []collector.Strategy{
		collector.NewRSSStrategy(window),
		collector.NewSearchAPIStrategy(cfg.Search, cfg.Pipeline.InterBatchDelay()),
		collector.NewNewsAPIStrategy(cfg.News, cfg.Search.WindowHours, cfg.Pipeline.InterBatchDelay()),
	}, cfg.Pipeline, zlog)
	if instruments != nil {
		col.WithMetrics(instruments)
	}

	model := llm.NewClient(cfg.LLM, zlog)
	processor := textproc.NewProcessor(extraction.NewEntityRecaller(model), zlog)
	var extRecorder extraction.Recorder
	if instruments != nil {
		extRecorder = instruments
	}
	extractor := extraction.NewService(model, extRecorder, zlog)

	var geocoder geo.Geocoder
	if gc := geocode.New(cfg.Geocode, zlog); gc != nil {
		geocoder = gc
	}
	resolver := geo.NewResolver(geocoder, zlog)

	clusterer := clustering.NewClusterer(cfg.Pipeline.SimilarityThreshold, zlog)

	var alerter ingestion.Alerter = noopAlerter{}
	if !opts.alertsMuted {
		sinks := []alerting.Sink{alerting.NewLogSink(zlog)}
		if cfg.Alerts.WebhookURL != "" {
			sinks = append(sinks, alerting.NewWebhookSink(cfg.Alerts.WebhookURL))
		}
		alerter = alerting.NewEmitter(cfg.Alerts, sinks, zlog)
	}

	orch := ingestion.NewOrchestrator(cfg, reg, col, dedup, processor,
		extractor, resolver, clusterer, store, alerter, zlog)
	if instruments != nil {
		orch.WithMetrics(instruments)
	}

	return &pipeline{orchestrator: orch, zap: zlog, close: closeAll}, nil
}

// connectStore wires only the persistence layer for the read-side
// commands; it needs a database URL but no external API credentials.
func connectStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.Database.URL == "" {
		return repository.Store{}, nil, domainerrors.NewConfigError("DB_URL")
	}

	zlog, err := newZapLogger(cfg, false)
	if err != nil {
		return repository.Store{}, nil, err
	}

	pool, err := database.Connect(ctx, &cfg.Database, zlog)
	if err != nil {
		return repository.Store{}, nil, err
	}

	spool, err := repository.NewSpool(cfg.SpoolDir, zlog)
	if err != nil {
		pool.Close()
		return repository.Store{}, nil, err
	}

	store := repository.Store{
		Sources:  repository.NewSourceRepository(pool.Pgx(), zlog),
		Articles: repository.NewArticleRepository(pool.Pgx(), zlog),
		Events:   repository.NewEventRepository(pool.Pgx(), spool, zlog),
		Audit:    repository.NewQueryAuditRepository(pool.Pgx(), zlog),
	}
	return store, pool.Close, nil
}

func newZapLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Environment == "development" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zcfg.Build()
}

// singleSourceRegistry narrows List to one source for targeted runs;
// everything else passes through.
type singleSourceRegistry struct {
	registry.Service
	name string
}

func (r *singleSourceRegistry) List(ctx context.Context, filter repository.SourceFilter) ([]*source.Source, error) {
	all, err := r.Service.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.Name == r.name {
			return []*source.Source{s}, nil
		}
	}
	return nil, nil
}

// noopAlerter satisfies the orchestrator when alerting is muted.
type noopAlerter struct{}

func (noopAlerter) ResetCycle() {}

func (noopAlerter) EmitAll(context.Context, []*event.Event) int { return 0 }
