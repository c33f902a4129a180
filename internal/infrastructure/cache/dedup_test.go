package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
)

type fakeLookup struct {
	urls   map[string]bool
	hashes map[string]bool
}

func (f *fakeLookup) URLExists(_ context.Context, u string) (bool, error) {
	return f.urls[u], nil
}

func (f *fakeLookup) HashExists(_ context.Context, h string) (bool, error) {
	return f.hashes[h], nil
}

func testArticle(t *testing.T, rawURL, body string) *article.Article {
	t.Helper()
	a, err := article.New(rawURL, "headline", body, time.Now(), uuid.New(), 1, "q")
	require.NoError(t, err)
	return a
}

func TestDedupIndex_AdmitOnce(t *testing.T) {
	ctx := context.Background()
	idx := NewDedupIndex(24*time.Hour, nil, &fakeLookup{urls: map[string]bool{}, hashes: map[string]bool{}}, zap.NewNop())

	a := testArticle(t, "https://example.com/story", "shelling near the border")

	admitted, err := idx.Admit(ctx, a)
	require.NoError(t, err)
	assert.True(t, admitted)

	admitted, err = idx.Admit(ctx, a)
	require.NoError(t, err)
	assert.False(t, admitted, "second admit of identical article must be rejected")
}

func TestDedupIndex_SameBodyDifferentURL(t *testing.T) {
	ctx := context.Background()
	idx := NewDedupIndex(24*time.Hour, nil, nil, zap.NewNop())

	a := testArticle(t, "https://example.com/story", "identical body text")

	admitted, err := idx.Admit(ctx, a)
	require.NoError(t, err)
	require.True(t, admitted)

	// A syndicated copy: same body, different URL, same hash modulo URL —
	// content hash includes the URL, so only the URL check differs here.
	b := testArticle(t, "https://mirror.example.org/story", "identical body text")
	seen, err := idx.Seen(ctx, b.URL)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestDedupIndex_ReadThrough(t *testing.T) {
	ctx := context.Background()
	a := testArticle(t, "https://example.com/story", "body")

	lookup := &fakeLookup{
		urls:   map[string]bool{a.URL: true},
		hashes: map[string]bool{},
	}
	idx := NewDedupIndex(24*time.Hour, nil, lookup, zap.NewNop())

	// Not in the rolling cache, but the persistent index knows it.
	seen, err := idx.Seen(ctx, a.URL)
	require.NoError(t, err)
	assert.True(t, seen)

	admitted, err := idx.Admit(ctx, a)
	require.NoError(t, err)
	assert.False(t, admitted)
}

func TestDedupIndex_WindowEviction(t *testing.T) {
	ctx := context.Background()
	idx := NewDedupIndex(time.Hour, nil, nil, zap.NewNop())

	a := testArticle(t, "https://example.com/story", "body")
	admitted, err := idx.Admit(ctx, a)
	require.NoError(t, err)
	require.True(t, admitted)

	// Prune as if the window has passed.
	idx.Prune(time.Now().Add(2 * time.Hour))

	seen, err := idx.Seen(ctx, a.URL)
	require.NoError(t, err)
	assert.False(t, seen, "entry should age out of the rolling cache")
}

func TestDedupIndex_ObserveRecordsNothing(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	idx := NewDedupIndex(24*time.Hour, client, nil, zap.NewNop())
	a := testArticle(t, "https://example.com/story", "body")

	seen, err := idx.Observe(ctx, a)
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Empty(t, mr.Keys(), "membership check must not write the shared tier")
	assert.Zero(t, idx.Size())

	// The article is still admissible afterwards.
	admitted, err := idx.Admit(ctx, a)
	require.NoError(t, err)
	assert.True(t, admitted)
	assert.Len(t, mr.Keys(), 2)
	assert.Equal(t, 1, idx.Size())

	seen, err = idx.Observe(ctx, a)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestDedupIndex_RedisTier(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	a := testArticle(t, "https://example.com/story", "body")

	writer := NewDedupIndex(24*time.Hour, client, nil, zap.NewNop())
	admitted, err := writer.Admit(ctx, a)
	require.NoError(t, err)
	require.True(t, admitted)

	// A second index (fresh process) sees the shared tier.
	reader := NewDedupIndex(24*time.Hour, client, nil, zap.NewNop())
	seen, err := reader.Seen(ctx, a.URL)
	require.NoError(t, err)
	assert.True(t, seen)

	seenHash, err := reader.SeenHash(ctx, a.ContentHash)
	require.NoError(t, err)
	assert.True(t, seenHash)

	// TTL expiry drops shared membership.
	mr.FastForward(25 * time.Hour)
	seen, err = reader.Seen(ctx, a.URL)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisRateLimiter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	rl := NewRedisRateLimiter(client, zap.NewNop())

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "reuters", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok, "request %d within budget", i)
	}

	ok, err := rl.Allow(ctx, "reuters", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "budget exhausted")

	// Other sources have independent budgets.
	ok, err = rl.Allow(ctx, "bbc_news", 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}
