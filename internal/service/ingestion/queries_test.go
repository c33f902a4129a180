package ingestion

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osintwatch/conflict-ingest/internal/domain/event"
)

func TestBroadQueries(t *testing.T) {
	queries := broadQueries([]string{"Ukraine", "Gaza"})
	require.Len(t, queries, 6)
	assert.Contains(t, queries, "Ukraine military conflict today")
	assert.Contains(t, queries, "Gaza casualties killed wounded")
	assert.Contains(t, queries, "Ukraine missile strike bombing latest")

	// The cap binds with many zones: 7 zones × 3 templates > 20.
	many := broadQueries([]string{"a", "b", "c", "d", "e", "f", "g"})
	assert.Len(t, many, 20)

	assert.Empty(t, broadQueries(nil))
	assert.Empty(t, broadQueries([]string{"", "  "}))
}

func minedEvent(location string, actors []string, headline string) *event.Event {
	ev := &event.Event{
		ID:               uuid.New(),
		EnhancedHeadline: headline,
		Timestamp:        time.Now().UTC(),
		PrimaryActors:    actors,
		ArticleIDs:       []uuid.UUID{uuid.New()},
	}
	if location != "" {
		ev.Location = &event.Location{Name: location, Lat: 1, Lng: 1,
			Method: event.MethodBaseMapping, Confidence: 0.8}
	}
	return ev
}

func TestMineEntities(t *testing.T) {
	events := []*event.Event{
		minedEvent("Kharkiv", []string{"Russia"}, "Russian missile barrage struck Kharkiv substation overnight"),
		minedEvent("Kharkiv", []string{"Ukraine"}, "Ukrainian defences intercepted drones over Kharkiv"),
		minedEvent("Rafah", []string{"Israel", "Hamas"}, "Airstrike hit shelters in Rafah"),
		minedEvent("Omdurman", []string{"RSF"}, "Artillery exchange rocked Omdurman"),
		minedEvent("", []string{"Wagner"}, "Mercenary convoy ambushed on desert road"),
	}

	mined := mineEntities(events)

	// Top 3 locations by frequency; Kharkiv first.
	require.Len(t, mined.locations, 3)
	assert.Equal(t, "Kharkiv", mined.locations[0].name)
	assert.LessOrEqual(t, len(mined.locations[0].actors), 2)

	require.NotEmpty(t, mined.keywords)
	assert.LessOrEqual(t, len(mined.keywords), 5)
	for _, kw := range mined.keywords {
		assert.Greater(t, len(kw), 5)
	}
}

func TestRankByCount(t *testing.T) {
	got := rankByCount(map[string]int{
		"rafah": 2, "kharkiv": 3, "omdurman": 2, "aleppo": 1,
	})
	// Count desc, ties broken lexicographically.
	assert.Equal(t, []string{"kharkiv", "omdurman", "rafah", "aleppo"}, got)
}

func TestTargetedQueries(t *testing.T) {
	mined := minedEntities{
		locations: []minedLocation{
			{name: "Kharkiv", actors: []string{"Russia", "Ukraine"}},
			{name: "Rafah", actors: []string{"Israel"}},
		},
		keywords: []string{"substation", "intercepted"},
	}

	queries := targetedQueries(mined, []string{"Ukraine military conflict today"})
	require.NotEmpty(t, queries)
	assert.LessOrEqual(t, len(queries), 10)
	assert.Contains(t, queries, "Kharkiv Russia military operations latest")
	assert.Contains(t, queries, "Rafah Israel military operations latest")
	assert.Contains(t, queries, "substation conflict military latest")
}

func TestTargetedQueries_DisjointFromRound1(t *testing.T) {
	mined := minedEntities{
		locations: []minedLocation{{name: "Ukraine", actors: []string{"military"}}},
		keywords:  []string{"conflict"},
	}
	round1 := []string{
		"Ukraine military military operations latest",
		"conflict conflict military latest",
	}

	queries := targetedQueries(mined, round1)
	for _, q := range queries {
		for _, r1 := range round1 {
			assert.NotEqual(t, strings.ToLower(r1), strings.ToLower(q))
		}
	}
	assert.Empty(t, queries, "everything collided with round 1")
}

func TestTargetedQueries_Cap(t *testing.T) {
	mined := minedEntities{
		locations: []minedLocation{
			{name: "A", actors: []string{"x", "y"}},
			{name: "B", actors: []string{"x", "y"}},
			{name: "C", actors: []string{"x", "y"}},
		},
		keywords: []string{"kw1long", "kw2long", "kw3long", "kw4long", "kw5long"},
	}

	queries := targetedQueries(mined, nil)
	assert.Len(t, queries, 10)
}
