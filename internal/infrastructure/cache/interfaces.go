package cache

import (
	"context"
	"time"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
)

// Key prefixes for the shared Redis tier
const (
	DedupURLPrefix  = "dedup:url:"
	DedupHashPrefix = "dedup:hash:"
	RateLimitPrefix = "ratelimit:source:"
)

// ArticleLookup is the read-through against the persistent articles
// table; database uniqueness is permanent even when the rolling cache
// has evicted an entry.
type ArticleLookup interface {
	URLExists(ctx context.Context, canonicalURL string) (bool, error)
	HashExists(ctx context.Context, contentHash string) (bool, error)
}

// DedupIndex answers membership questions for URLs and content hashes
// within the rolling window and admits unseen articles.
type DedupIndex interface {
	// Seen checks a canonicalized URL against the rolling cache and the
	// persistent index.
	Seen(ctx context.Context, canonicalURL string) (bool, error)
	// SeenHash checks a content hash the same way.
	SeenHash(ctx context.Context, contentHash string) (bool, error)
	// Admit admits the article if neither URL nor hash is known and
	// records both; the caller persists. Returns false for duplicates.
	Admit(ctx context.Context, a *article.Article) (bool, error)
	// Observe reports whether the article's URL or hash is already
	// known without recording anything. Dry runs use this so they
	// never seed the caches against later real cycles.
	Observe(ctx context.Context, a *article.Article) (bool, error)
	// Prune drops in-memory entries older than the window.
	Prune(now time.Time)
	// Size is the number of URLs tracked by the local rolling cache.
	Size() int
}

// RateLimiter enforces per-source request budgets over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
