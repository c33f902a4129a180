package clustering

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/event"
)

func draftEvent(source string, ts time.Time, lat, lng float64, actors []string, reliability float64) *event.Event {
	return &event.Event{
		ID:          uuid.New(),
		Title:       "test event",
		Timestamp:   ts,
		Location:    &event.Location{Lat: lat, Lng: lng, Name: "somewhere", Method: event.MethodBaseMapping, Confidence: 0.8},
		Type:        event.TypeArmedConflict,
		PrimaryActors: actors,
		SourceNames: []string{source},
		ArticleIDs:  []uuid.UUID{uuid.New()},
		Reliability: reliability,
	}
}

func TestCluster_CorroboratedIncident(t *testing.T) {
	// Two sources reporting the same drone strike on Kharkiv, two hours
	// apart, within a few km: one group, corroboration 2, full diversity.
	base := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)
	reuters := draftEvent("reuters_world", base, 49.9935, 36.2304,
		[]string{"Russia", "Ukraine"}, 0.92)
	bbc := draftEvent("bbc_world", base.Add(2*time.Hour), 49.9700, 36.2100,
		[]string{"Russia", "Ukraine"}, 0.90)

	c := NewClusterer(0.7, zap.NewNop())
	groups := c.Cluster([]*event.Event{reuters, bbc})

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Len(t, g.MemberEventIDs, 2)
	assert.Equal(t, reuters.ID, g.PrimaryEventID, "higher reliability wins primary")
	assert.Equal(t, 2, g.CorroborationCount)
	assert.Equal(t, 1.0, g.SourceDiversityScore)
	assert.True(t, g.Corroborated)
	assert.GreaterOrEqual(t, g.GroupConfidence, 0.7)

	require.NotNil(t, reuters.GroupID)
	require.NotNil(t, bbc.GroupID)
	assert.Equal(t, g.ID, *reuters.GroupID)
}

func TestCluster_DistantEventsStaySeparate(t *testing.T) {
	base := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)
	kharkiv := draftEvent("reuters_world", base, 49.9935, 36.2304,
		[]string{"Russia", "Ukraine"}, 0.9)
	gaza := draftEvent("aljazeera_english", base, 31.5017, 34.4668,
		[]string{"Israel", "Hamas"}, 0.8)

	c := NewClusterer(0.7, zap.NewNop())
	groups := c.Cluster([]*event.Event{kharkiv, gaza})

	require.Len(t, groups, 2)
	for _, g := range groups {
		assert.Len(t, g.MemberEventIDs, 1)
		assert.False(t, g.Corroborated)
		assert.Equal(t, 1.0, g.GroupConfidence)
	}
}

func TestCluster_SingleLinkChaining(t *testing.T) {
	// A close to B, B close to C, A not close to C in time: single-link
	// still unites all three.
	base := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)
	a := draftEvent("s1", base, 49.99, 36.23, []string{"Russia"}, 0.9)
	b := draftEvent("s2", base.Add(1*time.Hour), 49.99, 36.23, []string{"Russia"}, 0.8)
	cEv := draftEvent("s3", base.Add(2*time.Hour), 49.99, 36.23, []string{"Russia"}, 0.7)

	c := NewClusterer(0.9, zap.NewNop())
	groups := c.Cluster([]*event.Event{a, b, cEv})

	// With threshold 0.9 the 2h pair may or may not link directly, but
	// no event is ever lost.
	total := 0
	for _, g := range groups {
		total += len(g.MemberEventIDs)
	}
	assert.Equal(t, 3, total)
}

func TestCluster_NeverDropsLocationlessEvents(t *testing.T) {
	base := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)
	located := draftEvent("s1", base, 49.99, 36.23, []string{"Russia"}, 0.9)
	homeless := draftEvent("s2", base, 0, 0, []string{"Russia"}, 0.8)
	homeless.Location = nil

	c := NewClusterer(0.7, zap.NewNop())
	groups := c.Cluster([]*event.Event{located, homeless})

	total := 0
	for _, g := range groups {
		total += len(g.MemberEventIDs)
	}
	assert.Equal(t, 2, total)
}

func TestCluster_Empty(t *testing.T) {
	c := NewClusterer(0.7, zap.NewNop())
	assert.Nil(t, c.Cluster(nil))
}

func TestSimilarity_Components(t *testing.T) {
	base := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)
	a := draftEvent("s1", base, 49.9935, 36.2304, []string{"Russia", "Ukraine"}, 0.9)

	t.Run("identical events score 1", func(t *testing.T) {
		b := draftEvent("s2", base, 49.9935, 36.2304, []string{"Russia", "Ukraine"}, 0.9)
		assert.InDelta(t, 1.0, Similarity(a, b), 1e-9)
	})

	t.Run("temporal decay", func(t *testing.T) {
		b := draftEvent("s2", base.Add(3*time.Hour), 49.9935, 36.2304,
			[]string{"Russia", "Ukraine"}, 0.9)
		// temporal drops to 0.5, everything else stays 1.
		assert.InDelta(t, 0.3*0.5+0.4+0.2+0.1, Similarity(a, b), 1e-9)
	})

	t.Run("beyond six hours temporal is zero", func(t *testing.T) {
		b := draftEvent("s2", base.Add(9*time.Hour), 49.9935, 36.2304,
			[]string{"Russia", "Ukraine"}, 0.9)
		assert.InDelta(t, 0.4+0.2+0.1, Similarity(a, b), 1e-9)
	})

	t.Run("partial actor overlap", func(t *testing.T) {
		b := draftEvent("s2", base, 49.9935, 36.2304, []string{"Russia", "Wagner"}, 0.9)
		// Jaccard = 1/3.
		assert.InDelta(t, 0.3+0.4+0.2/3+0.1, Similarity(a, b), 1e-9)
	})

	t.Run("different type loses the type weight", func(t *testing.T) {
		b := draftEvent("s2", base, 49.9935, 36.2304, []string{"Russia", "Ukraine"}, 0.9)
		b.Type = event.TypeTerrorism
		assert.InDelta(t, 0.3+0.4+0.2, Similarity(a, b), 1e-9)
	})

	t.Run("missing location zeroes geographic", func(t *testing.T) {
		b := draftEvent("s2", base, 0, 0, []string{"Russia", "Ukraine"}, 0.9)
		b.Location = nil
		assert.InDelta(t, 0.3+0.2+0.1, Similarity(a, b), 1e-9)
	})
}
