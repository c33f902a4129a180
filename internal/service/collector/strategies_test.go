package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osintwatch/conflict-ingest/internal/domain/source"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/config"

	domainerrors "github.com/osintwatch/conflict-ingest/internal/domain/errors"
)

func TestSearchAPIStrategy_Fetch(t *testing.T) {
	var gotQueries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQueries = append(gotQueries, q.Get("q"))
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "test-cx", q.Get("cx"))
		assert.Equal(t, "d1", q.Get("dateRestrict"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": [
			{"title": "Strike on Kharkiv", "link": "https://news.example.com/a?utm_source=x", "snippet": "12 people were killed"},
			{"title": "No link", "link": "", "snippet": "dropped"}
		]}`))
	}))
	defer srv.Close()

	strategy := NewSearchAPIStrategy(config.SearchConfig{
		APIKey:      "test-key",
		EngineID:    "test-cx",
		Endpoint:    srv.URL,
		WindowHours: 24,
		Timeout:     5 * time.Second,
	}, time.Millisecond)

	src, err := source.NewSource("Google Custom Search", srv.URL, source.KindSearchAPI)
	require.NoError(t, err)

	articles, err := strategy.Fetch(context.Background(), src,
		[]string{"Ukraine military conflict today", "Gaza casualties killed wounded"}, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"Ukraine military conflict today", "Gaza casualties killed wounded"}, gotQueries)
	require.Len(t, articles, 2) // one valid item per query
	assert.Equal(t, "https://news.example.com/a", articles[0].URL, "tracking params stripped")
	assert.Equal(t, 1, articles[0].Round)
	assert.Equal(t, "Ukraine military conflict today", articles[0].Query)
}

func TestSearchAPIStrategy_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	strategy := NewSearchAPIStrategy(config.SearchConfig{
		Endpoint: srv.URL, WindowHours: 24, Timeout: 5 * time.Second,
	}, time.Millisecond)
	src, err := source.NewSource("Search", srv.URL, source.KindSearchAPI)
	require.NoError(t, err)

	_, err = strategy.Fetch(context.Background(), src, []string{"q"}, 1)
	require.Error(t, err)
	assert.True(t, domainerrors.IsRetryable(err))
}

func TestNewsAPIStrategy_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "publishedAt", r.URL.Query().Get("sortBy"))
		assert.NotEmpty(t, r.URL.Query().Get("from"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok", "articles": [
			{"title": "Clashes in Khartoum", "description": "heavy fighting",
			 "url": "https://news.example.com/khartoum", "publishedAt": "2026-03-10T05:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	strategy := NewNewsAPIStrategy(config.NewsConfig{
		APIKey: "secret", Endpoint: srv.URL, Timeout: 5 * time.Second,
	}, 24, time.Millisecond)

	src, err := source.NewSource("NewsAPI", srv.URL, source.KindNewsAPI)
	require.NoError(t, err)

	articles, err := strategy.Fetch(context.Background(), src, []string{"sudan conflict"}, 2)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, 2, articles[0].Round)
	assert.Equal(t, time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC), articles[0].PublishedAt)
}

func TestRSSStrategy_Fetch(t *testing.T) {
	recent := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC1123Z)
	stale := time.Now().UTC().Add(-72 * time.Hour).Format(time.RFC1123Z)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Test Feed</title>
<item><title>Fresh strike report</title><link>https://news.example.com/fresh</link>
<description>Shelling reported</description><pubDate>` + recent + `</pubDate></item>
<item><title>Old report</title><link>https://news.example.com/old</link>
<description>stale</description><pubDate>` + stale + `</pubDate></item>
</channel></rss>`))
	}))
	defer srv.Close()

	strategy := NewRSSStrategy(24 * time.Hour)
	src, err := source.NewSource("Test Feed", srv.URL, source.KindRSS)
	require.NoError(t, err)

	articles, err := strategy.Fetch(context.Background(), src, nil, 1)
	require.NoError(t, err)
	require.Len(t, articles, 1, "items older than the window are dropped")
	assert.Equal(t, "Fresh strike report", articles[0].Headline)
	assert.Equal(t, "https://news.example.com/fresh", articles[0].URL)
}

func TestRSSStrategy_FetchFailure(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"gone feed is permanent", http.StatusNotFound, false},
		{"forbidden feed is permanent", http.StatusForbidden, false},
		{"rate limited feed is transient", http.StatusTooManyRequests, true},
		{"server error is transient", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			strategy := NewRSSStrategy(24 * time.Hour)
			src, err := source.NewSource("Broken Feed", srv.URL, source.KindRSS)
			require.NoError(t, err)

			_, err = strategy.Fetch(context.Background(), src, nil, 1)
			require.Error(t, err)
			assert.Equal(t, tt.retryable, domainerrors.IsRetryable(err))
		})
	}
}
