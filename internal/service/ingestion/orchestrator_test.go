package ingestion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
	"github.com/osintwatch/conflict-ingest/internal/domain/audit"
	"github.com/osintwatch/conflict-ingest/internal/domain/event"
	"github.com/osintwatch/conflict-ingest/internal/domain/source"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/cache"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/config"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/repository"
	"github.com/osintwatch/conflict-ingest/internal/service/alerting"
	"github.com/osintwatch/conflict-ingest/internal/service/clustering"
	"github.com/osintwatch/conflict-ingest/internal/service/collector"
	"github.com/osintwatch/conflict-ingest/internal/service/extraction"
	"github.com/osintwatch/conflict-ingest/internal/service/geo"
	"github.com/osintwatch/conflict-ingest/internal/service/textproc"
)

// fakeCollector replays a scripted article set per round, rebuilding
// fresh article values each call the way live collection would.
type fakeCollector struct {
	byRound map[int][]articleSpec
}

type articleSpec struct {
	url      string
	headline string
	body     string
	source   string
	query    string
}

func (f *fakeCollector) Collect(_ context.Context, _ []string, round int) ([]*article.Article, []collector.SourceError) {
	var out []*article.Article
	for _, spec := range f.byRound[round] {
		a, err := article.New(spec.url, spec.headline, spec.body,
			time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC), uuid.New(), round, spec.query)
		if err != nil {
			continue
		}
		a.SourceName = spec.source
		out = append(out, a)
	}
	return out, nil
}

type memoryStore struct {
	mu       sync.Mutex
	articles map[string]uuid.UUID // content hash → id
	events   []*event.Event
	groups   []*event.EventGroup
	audits   []*audit.SearchQueryAudit
}

func newMemoryStore() *memoryStore {
	return &memoryStore{articles: map[string]uuid.UUID{}}
}

func (m *memoryStore) Upsert(_ context.Context, a *article.Article) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.articles[a.ContentHash]; ok {
		return id, nil
	}
	m.articles[a.ContentHash] = a.ID
	return a.ID, nil
}

func (m *memoryStore) URLExists(context.Context, string) (bool, error)  { return false, nil }
func (m *memoryStore) HashExists(_ context.Context, h string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.articles[h]
	return ok, nil
}

func (m *memoryStore) InsertEvents(_ context.Context, events []*event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *memoryStore) InsertEventGroups(_ context.Context, groups []*event.EventGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = append(m.groups, groups...)
	return nil
}

func (m *memoryStore) SetGroupID(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (m *memoryStore) HighEscalationSnapshot(_ context.Context, minScore int) ([]*event.Event, error) {
	var out []*event.Event
	for _, ev := range m.events {
		if ev.EscalationScore >= minScore {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memoryStore) Query(context.Context, repository.EventFilter) ([]*event.Event, error) {
	return m.events, nil
}

func (m *memoryStore) Append(_ context.Context, entry *audit.SearchQueryAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, entry)
	return nil
}

func (m *memoryStore) ListByCycle(context.Context, uuid.UUID) ([]*audit.SearchQueryAudit, error) {
	return m.audits, nil
}

type staticRegistry struct{ sources []*source.Source }

func (s *staticRegistry) Load(context.Context) error { return nil }
func (s *staticRegistry) List(context.Context, repository.SourceFilter) ([]*source.Source, error) {
	return s.sources, nil
}
func (s *staticRegistry) RecordSuccess(context.Context, string, int) error { return nil }
func (s *staticRegistry) RecordFailure(context.Context, string, string) error {
	return nil
}
func (s *staticRegistry) CheckRateLimit(context.Context, string) (bool, error) { return true, nil }
func (s *staticRegistry) Upsert(context.Context, *source.Source) error         { return nil }
func (s *staticRegistry) Reactivate(context.Context, string) error             { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			MaxConcurrentRequests: 4,
			BatchSize:             50,
			DedupWindow:           24 * time.Hour,
			RelevanceThreshold:    0.3,
			SimilarityThreshold:   0.7,
			SecondRoundEnabled:    true,
			MaxArticlesPerRun:     400,
			RequireLocation:       true,
		},
		Alerts:        config.AlertConfig{MinSeverity: "high", MinScore: 7, MinCasualties: 10},
		ConflictZones: []string{"Ukraine", "Gaza"},
	}
}

type harness struct {
	orchestrator *Orchestrator
	store        *memoryStore
	sink         *captureSink
}

type captureSink struct {
	mu     sync.Mutex
	alerts []alerting.Alert
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Deliver(_ context.Context, a alerting.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func newHarness(t *testing.T, col ArticleCollector) *harness {
	t.Helper()
	cfg := testConfig()
	logger := zap.NewNop()
	store := newMemoryStore()

	reuters, err := source.NewSource("Reuters World", "https://example.com/r", source.KindRSS)
	require.NoError(t, err)
	reuters.Reliability = 92
	bbc, err := source.NewSource("BBC World", "https://example.com/b", source.KindRSS)
	require.NoError(t, err)
	bbc.Reliability = 90

	sink := &captureSink{}
	return &harness{
		orchestrator: NewOrchestrator(
			cfg,
			&staticRegistry{sources: []*source.Source{reuters, bbc}},
			col,
			cache.NewDedupIndex(cfg.Pipeline.DedupWindow, nil, store, logger),
			textproc.NewProcessor(nil, logger),
			extraction.NewService(nil, nil, logger),
			geo.NewResolver(nil, logger),
			clustering.NewClusterer(cfg.Pipeline.SimilarityThreshold, logger),
			repository.Store{Articles: store, Events: store, Audit: store},
			alerting.NewEmitter(cfg.Alerts, []alerting.Sink{sink}, logger),
			logger,
		),
		store: store,
		sink:  sink,
	}
}

// Conflict-dense body so relevance clears the threshold and the pattern
// extractor finds casualties, weapons and an actor.
const kharkivBody = "Russian Forces launched a missile and drone attack on the city. " +
	"12 people were killed and 30 wounded in the strike, officials said. " +
	"Artillery shelling and fighting continued in Kharkiv as troops clashed near the frontline."

func TestRunCycle_TwoRoundsEndToEnd(t *testing.T) {
	col := &fakeCollector{byRound: map[int][]articleSpec{
		1: {
			{"https://example.com/r/kharkiv-strike", "Missile strike on Kharkiv", kharkivBody,
				"reuters_world", "Ukraine military conflict today"},
			{"https://example.com/b/kharkiv-strike", "Drone attack hits Kharkiv", kharkivBody,
				"bbc_world", "Ukraine military conflict today"},
			{"https://example.com/r/weather", "Sunny weekend ahead",
				"Mild temperatures expected across the region.", "reuters_world", ""},
		},
		2: {
			{"https://example.com/r/kharkiv-followup", "More shelling in Kharkiv", kharkivBody,
				"reuters_world", "Kharkiv Russian Forces military operations latest"},
		},
	}}

	h := newHarness(t, col)
	stats, err := h.orchestrator.RunCycle(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.ArticlesFetchedRound1)
	assert.Equal(t, 1, stats.ArticlesFetchedRound2)
	assert.Equal(t, 4, stats.ArticlesAdmitted)
	assert.Equal(t, 3, stats.ArticlesRelevant, "weather article dropped on relevance")

	assert.Equal(t, 2, stats.EventsRound1)
	assert.Equal(t, 1, stats.EventsRound2)
	assert.InDelta(t, 0.5, stats.CoverageBoost, 1e-9)

	// Both rounds persisted, all events carry a resolved Kharkiv location.
	require.Len(t, h.store.events, 3)
	for _, ev := range h.store.events {
		require.NotNil(t, ev.Location)
		assert.Equal(t, "Ukraine", ev.Location.Country)
		assert.Equal(t, event.MethodVerifiedMatch, ev.Location.Method)
		require.NotNil(t, ev.GroupID)
	}
	assert.NotEmpty(t, h.store.groups)

	// Round-1 broad queries were audited: 2 zones × 3 templates.
	broadCount := 0
	for _, a := range h.store.audits {
		if a.Kind == audit.QueryKindBroad {
			broadCount++
			assert.Equal(t, 1, a.Round)
		}
	}
	assert.Equal(t, 6, broadCount)
}

func TestRunCycle_IdempotentWithinWindow(t *testing.T) {
	col := &fakeCollector{byRound: map[int][]articleSpec{
		1: {{"https://example.com/r/kharkiv-strike", "Missile strike on Kharkiv", kharkivBody,
			"reuters_world", "Ukraine military conflict today"}},
	}}

	h := newHarness(t, col)
	first, err := h.orchestrator.RunCycle(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, first.EventsRound1)
	persistedEvents := len(h.store.events)

	// The same articles arrive again: dedup absorbs everything and no
	// new state is written.
	second, err := h.orchestrator.RunCycle(context.Background(), Options{})
	require.NoError(t, err)
	assert.Zero(t, second.ArticlesAdmitted)
	assert.Zero(t, second.EventsRound1)
	assert.Len(t, h.store.events, persistedEvents)
	assert.Len(t, h.store.articles, 1)
}

func TestRunCycle_SkipsRound2WithoutRound1Events(t *testing.T) {
	col := &fakeCollector{byRound: map[int][]articleSpec{
		1: {{"https://example.com/r/weather", "Sunny weekend ahead",
			"Mild temperatures expected.", "reuters_world", ""}},
		2: {{"https://example.com/r/should-not-run", "Strike", kharkivBody, "reuters_world", ""}},
	}}

	h := newHarness(t, col)
	stats, err := h.orchestrator.RunCycle(context.Background(), Options{})
	require.NoError(t, err)

	assert.Zero(t, stats.EventsRound1)
	assert.Zero(t, stats.EventsRound2)
	assert.Zero(t, stats.ArticlesFetchedRound2, "round 2 never ran")
	assert.Zero(t, stats.CoverageBoost)
}

func TestRunCycle_RequireLocationDropsUnresolvable(t *testing.T) {
	// Relevant article whose only location mention is unknown to every
	// strategy and no geocoder is configured.
	body := "Militia forces launched an attack in Qyzylorda. " +
		"5 people were killed in the fighting as troops and soldiers clashed during the military offensive."
	col := &fakeCollector{byRound: map[int][]articleSpec{
		1: {{"https://example.com/r/unknown-town", "Attack reported", body, "reuters_world", ""}},
	}}

	h := newHarness(t, col)
	stats, err := h.orchestrator.RunCycle(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ArticlesRelevant)
	assert.Zero(t, stats.EventsRound1)
	assert.Empty(t, h.store.events)
}

func TestRunCycle_DryRunWritesNothing(t *testing.T) {
	col := &fakeCollector{byRound: map[int][]articleSpec{
		1: {{"https://example.com/r/kharkiv-strike", "Missile strike on Kharkiv", kharkivBody,
			"reuters_world", "Ukraine military conflict today"}},
	}}

	h := newHarness(t, col)
	stats, err := h.orchestrator.RunCycle(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.EventsRound1)
	assert.Empty(t, h.store.events)
	assert.Empty(t, h.store.articles)
	assert.Empty(t, h.store.audits)
	assert.Empty(t, h.sink.alerts)
	assert.Zero(t, stats.AlertsEmitted)
}

func TestRunCycle_DryRunDoesNotSeedDedup(t *testing.T) {
	col := &fakeCollector{byRound: map[int][]articleSpec{
		1: {{"https://example.com/r/kharkiv-strike", "Missile strike on Kharkiv", kharkivBody,
			"reuters_world", "Ukraine military conflict today"}},
	}}

	h := newHarness(t, col)
	dry, err := h.orchestrator.RunCycle(context.Background(), Options{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 1, dry.ArticlesAdmitted)

	// The same article must still be admitted by the next real cycle.
	live, err := h.orchestrator.RunCycle(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, live.ArticlesAdmitted)
	assert.Equal(t, 1, live.EventsRound1)
	assert.Len(t, h.store.articles, 1)
	require.NotEmpty(t, h.store.events)
}

func TestRunCycle_AlertsOnHighSeverity(t *testing.T) {
	// 150 dead pushes the mass-casualty floor to escalation 7 → severity
	// high → alert.
	body := "150 people were killed in a massive artillery and missile bombardment. " +
		"Fighting raged in Kharkiv as forces pressed their military offensive against troops in the city."
	col := &fakeCollector{byRound: map[int][]articleSpec{
		1: {{"https://example.com/r/mass-casualty", "Bombardment kills 150", body,
			"reuters_world", "Ukraine casualties killed wounded"}},
	}}

	h := newHarness(t, col)
	stats, err := h.orchestrator.RunCycle(context.Background(), Options{})
	require.NoError(t, err)

	require.Equal(t, 1, stats.EventsRound1)
	assert.Equal(t, 1, stats.AlertsEmitted)
	require.Len(t, h.sink.alerts, 1)
	assert.Equal(t, "severity", h.sink.alerts[0].Reason)
	require.NotNil(t, h.sink.alerts[0].Killed)
	assert.Equal(t, 150, *h.sink.alerts[0].Killed)
}

func TestRunCycle_NeverPanicsOnEmptyCollection(t *testing.T) {
	h := newHarness(t, &fakeCollector{byRound: map[int][]articleSpec{}})
	stats, err := h.orchestrator.RunCycle(context.Background(), Options{})
	require.NoError(t, err)
	assert.Zero(t, stats.EventsRound1)
	assert.NotZero(t, stats.CycleID)
	assert.False(t, stats.FinishedAt.IsZero())
}
