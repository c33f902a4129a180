package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
)

// dedupIndex layers a process-local rolling cache over an optional
// shared Redis tier and a read-through to the articles table. A stale
// read causing a double insert is tolerated; persistence enforces
// uniqueness.
type dedupIndex struct {
	mu     sync.Mutex
	urls   map[string]time.Time
	hashes map[string]time.Time

	window time.Duration
	client *redis.Client // nil when no shared tier is configured
	lookup ArticleLookup
	logger *zap.Logger
}

// NewDedupIndex builds the dedup index. client may be nil; lookup may be
// nil in dry-run mode (membership then relies on the caches alone).
func NewDedupIndex(window time.Duration, client *redis.Client, lookup ArticleLookup, logger *zap.Logger) DedupIndex {
	return &dedupIndex{
		urls:   make(map[string]time.Time),
		hashes: make(map[string]time.Time),
		window: window,
		client: client,
		lookup: lookup,
		logger: logger,
	}
}

func (d *dedupIndex) Seen(ctx context.Context, canonicalURL string) (bool, error) {
	if d.memberLocal(d.urls, canonicalURL) {
		return true, nil
	}
	if seen, err := d.memberRedis(ctx, DedupURLPrefix+canonicalURL); err == nil && seen {
		return true, nil
	}
	if d.lookup != nil {
		return d.lookup.URLExists(ctx, canonicalURL)
	}
	return false, nil
}

func (d *dedupIndex) SeenHash(ctx context.Context, contentHash string) (bool, error) {
	if d.memberLocal(d.hashes, contentHash) {
		return true, nil
	}
	if seen, err := d.memberRedis(ctx, DedupHashPrefix+contentHash); err == nil && seen {
		return true, nil
	}
	if d.lookup != nil {
		return d.lookup.HashExists(ctx, contentHash)
	}
	return false, nil
}

func (d *dedupIndex) Admit(ctx context.Context, a *article.Article) (bool, error) {
	seen, err := d.Observe(ctx, a)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}

	now := time.Now()
	d.mu.Lock()
	d.urls[a.URL] = now
	d.hashes[a.ContentHash] = now
	d.mu.Unlock()

	if d.client != nil {
		pipe := d.client.Pipeline()
		pipe.Set(ctx, DedupURLPrefix+a.URL, 1, d.window)
		pipe.Set(ctx, DedupHashPrefix+a.ContentHash, 1, d.window)
		if _, err := pipe.Exec(ctx); err != nil {
			// Shared tier is best-effort; the database still dedupes.
			d.logger.Warn("dedup redis write failed", zap.Error(err))
		}
	}

	return true, nil
}

// Observe checks URL then hash membership across all three tiers and
// writes nothing.
func (d *dedupIndex) Observe(ctx context.Context, a *article.Article) (bool, error) {
	seen, err := d.Seen(ctx, a.URL)
	if err != nil || seen {
		return seen, err
	}
	return d.SeenHash(ctx, a.ContentHash)
}

// Prune drops entries older than the window from the local cache. The
// Redis tier expires by TTL and the database is permanent.
func (d *dedupIndex) Prune(now time.Time) {
	cutoff := now.Add(-d.window)
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, at := range d.urls {
		if at.Before(cutoff) {
			delete(d.urls, k)
		}
	}
	for k, at := range d.hashes {
		if at.Before(cutoff) {
			delete(d.hashes, k)
		}
	}
}

func (d *dedupIndex) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *dedupIndex) memberLocal(m map[string]time.Time, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := m[key]
	if !ok {
		return false
	}
	return !at.Before(time.Now().Add(-d.window))
}

func (d *dedupIndex) memberRedis(ctx context.Context, key string) (bool, error) {
	if d.client == nil {
		return false, nil
	}
	n, err := d.client.Exists(ctx, key).Result()
	if err != nil {
		d.logger.Warn("dedup redis read failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return n > 0, nil
}
