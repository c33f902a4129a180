package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/osintwatch/conflict-ingest/internal/domain/source"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/cache"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/repository"
)

// service keeps the authoritative in-memory view of the source catalog.
// Mutations go through the mutex; List hands out copies so readers are
// lock-free after the call returns.
type service struct {
	mu      sync.Mutex
	sources map[string]*source.Source
	buckets map[string]*rate.Limiter

	repo   repository.SourceRepository
	shared cache.RateLimiter // optional cross-process limiter
	logger *zap.Logger
}

// NewService creates the registry. shared may be nil; the in-process
// token buckets then stand alone.
func NewService(repo repository.SourceRepository, shared cache.RateLimiter, logger *zap.Logger) Service {
	return &service{
		sources: make(map[string]*source.Source),
		buckets: make(map[string]*rate.Limiter),
		repo:    repo,
		shared:  shared,
		logger:  logger,
	}
}

func (s *service) Load(ctx context.Context) error {
	for _, seed := range SeedSources() {
		if err := s.repo.Upsert(ctx, seed); err != nil {
			return err
		}
	}

	all, err := s.repo.List(ctx, repository.SourceFilter{IncludeInactive: true})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, src := range all {
		s.sources[src.Name] = src
		s.buckets[src.Name] = newBucket(src.RateLimitPerHour)
	}

	s.logger.Info("source registry loaded", zap.Int("sources", len(all)))
	return nil
}

// newBucket projects the hourly cap onto a token bucket: refill at
// limit/hour with a full-hour burst.
func newBucket(perHour int) *rate.Limiter {
	if perHour <= 0 {
		perHour = 60
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), perHour)
}

func (s *service) List(_ context.Context, filter repository.SourceFilter) ([]*source.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*source.Source
	for _, src := range s.sources {
		if !filter.IncludeInactive && !src.Active {
			continue
		}
		if filter.Kind != nil && src.Kind != *filter.Kind {
			continue
		}
		if filter.Language != "" && src.Language != filter.Language {
			continue
		}
		cp := *src
		cp.Regions = append([]string(nil), src.Regions...)
		out = append(out, &cp)
	}
	return out, nil
}

func (s *service) RecordSuccess(ctx context.Context, name string, articleCount int) error {
	s.mu.Lock()
	src, ok := s.sources[name]
	if !ok {
		s.mu.Unlock()
		return repository.ErrNotFound
	}

	// Empty fetches succeed but recover health at half weight.
	weight := 1.0
	if articleCount == 0 {
		weight = 0.5
	}
	src.ApplySuccess(weight)
	cp := *src
	s.mu.Unlock()

	return s.repo.UpdateHealth(ctx, &cp)
}

func (s *service) RecordFailure(ctx context.Context, name string, errKind string) error {
	s.mu.Lock()
	src, ok := s.sources[name]
	if !ok {
		s.mu.Unlock()
		return repository.ErrNotFound
	}

	src.ApplyFailure()
	deactivated := !src.Active
	cp := *src
	s.mu.Unlock()

	if deactivated {
		s.logger.Warn("source deactivated after consecutive failures",
			zap.String("source", name),
			zap.String("error_kind", errKind),
			zap.Int("failures", cp.ConsecutiveFailures))
	}

	return s.repo.UpdateHealth(ctx, &cp)
}

func (s *service) CheckRateLimit(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	src, ok := s.sources[name]
	if !ok {
		s.mu.Unlock()
		return false, repository.ErrNotFound
	}
	bucket, bucketOK := s.buckets[name]
	if !bucketOK {
		bucket = newBucket(src.RateLimitPerHour)
		s.buckets[name] = bucket
	}
	limit := src.RateLimitPerHour
	s.mu.Unlock()

	if !bucket.Allow() {
		return false, nil
	}

	// The shared limiter covers multiple ingestion processes sharing
	// one external budget.
	if s.shared != nil {
		allowed, err := s.shared.Allow(ctx, name, limit, time.Hour)
		if err != nil {
			// Shared tier unavailable: fall back to the local decision.
			s.logger.Warn("shared rate limiter unavailable",
				zap.String("source", name),
				zap.Error(err))
			return true, nil
		}
		return allowed, nil
	}

	return true, nil
}

func (s *service) Upsert(ctx context.Context, src *source.Source) error {
	if err := s.repo.Upsert(ctx, src); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *src
	s.sources[src.Name] = &cp
	if _, ok := s.buckets[src.Name]; !ok {
		s.buckets[src.Name] = newBucket(src.RateLimitPerHour)
	}
	return nil
}

func (s *service) Reactivate(ctx context.Context, name string) error {
	normalized := source.Normalize(name)
	if err := s.repo.Reactivate(ctx, normalized); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[normalized]; ok {
		src.Reactivate()
	}
	return nil
}
