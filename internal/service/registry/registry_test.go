package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/source"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/repository"
)

type fakeSourceRepo struct {
	mu      sync.Mutex
	sources map[string]*source.Source
}

func newFakeSourceRepo() *fakeSourceRepo {
	return &fakeSourceRepo{sources: map[string]*source.Source{}}
}

func (f *fakeSourceRepo) Upsert(_ context.Context, s *source.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sources[s.Name] = &cp
	return nil
}

func (f *fakeSourceRepo) GetByName(_ context.Context, name string) (*source.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[source.Normalize(name)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSourceRepo) List(_ context.Context, filter repository.SourceFilter) ([]*source.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*source.Source
	for _, s := range f.sources {
		if !filter.IncludeInactive && !s.Active {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeSourceRepo) UpdateHealth(_ context.Context, s *source.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sources[s.Name]; !ok {
		return repository.ErrNotFound
	}
	cp := *s
	f.sources[s.Name] = &cp
	return nil
}

func (f *fakeSourceRepo) Reactivate(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[source.Normalize(name)]
	if !ok {
		return repository.ErrNotFound
	}
	s.Reactivate()
	return nil
}

func loadedRegistry(t *testing.T) (Service, *fakeSourceRepo) {
	t.Helper()
	repo := newFakeSourceRepo()
	svc := NewService(repo, nil, zap.NewNop())
	require.NoError(t, svc.Load(context.Background()))
	return svc, repo
}

func TestService_Load_SeedsCatalog(t *testing.T) {
	svc, _ := loadedRegistry(t)

	sources, err := svc.List(context.Background(), repository.SourceFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, sources)

	names := map[string]bool{}
	for _, s := range sources {
		names[s.Name] = true
	}
	assert.True(t, names["reuters_world"])
	assert.True(t, names["bbc_world"])
}

func TestService_List_FiltersByKind(t *testing.T) {
	svc, _ := loadedRegistry(t)

	kind := source.KindRSS
	sources, err := svc.List(context.Background(), repository.SourceFilter{Kind: &kind})
	require.NoError(t, err)
	require.NotEmpty(t, sources)
	for _, s := range sources {
		assert.Equal(t, source.KindRSS, s.Kind)
	}
}

func TestService_FailureBudgetDeactivates(t *testing.T) {
	svc, repo := loadedRegistry(t)
	ctx := context.Background()

	for i := 0; i < source.MaxConsecutiveFailures; i++ {
		require.NoError(t, svc.RecordFailure(ctx, "reuters_world", "fetch_transient"))
	}

	// Deactivated sources leave the default List view.
	sources, err := svc.List(ctx, repository.SourceFilter{})
	require.NoError(t, err)
	for _, s := range sources {
		assert.NotEqual(t, "reuters_world", s.Name)
	}

	// Deactivation was persisted.
	stored, err := repo.GetByName(ctx, "reuters_world")
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, 0.0, stored.Health)

	// Operator reactivation restores it.
	require.NoError(t, svc.Reactivate(ctx, "reuters_world"))
	sources, err = svc.List(ctx, repository.SourceFilter{})
	require.NoError(t, err)
	found := false
	for _, s := range sources {
		if s.Name == "reuters_world" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestService_SuccessResetsFailures(t *testing.T) {
	svc, repo := loadedRegistry(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordFailure(ctx, "bbc_world", "fetch_transient"))
	require.NoError(t, svc.RecordFailure(ctx, "bbc_world", "fetch_transient"))
	require.NoError(t, svc.RecordSuccess(ctx, "bbc_world", 12))

	stored, err := repo.GetByName(ctx, "bbc_world")
	require.NoError(t, err)
	assert.Zero(t, stored.ConsecutiveFailures)
	assert.Equal(t, 1, stored.DailyAccessCount)
	assert.NotNil(t, stored.LastSuccessAt)
}

func TestService_CheckRateLimit(t *testing.T) {
	repo := newFakeSourceRepo()
	svc := NewService(repo, nil, zap.NewNop())

	tight, err := source.NewSource("Tight Feed", "https://example.com/rss", source.KindRSS)
	require.NoError(t, err)
	tight.RateLimitPerHour = 2
	require.NoError(t, svc.Upsert(context.Background(), tight))

	ctx := context.Background()
	allowed, err := svc.CheckRateLimit(ctx, "tight_feed")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = svc.CheckRateLimit(ctx, "tight_feed")
	require.NoError(t, err)
	assert.True(t, allowed)

	// Burst consumed; refill is 2/hour so the third call blocks.
	allowed, err = svc.CheckRateLimit(ctx, "tight_feed")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestService_UnknownSource(t *testing.T) {
	svc, _ := loadedRegistry(t)
	ctx := context.Background()

	assert.Error(t, svc.RecordSuccess(ctx, "nope", 1))
	assert.Error(t, svc.RecordFailure(ctx, "nope", "parse"))
	_, err := svc.CheckRateLimit(ctx, "nope")
	assert.Error(t, err)
}
