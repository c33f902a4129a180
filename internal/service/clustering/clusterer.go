package clustering

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/event"
	"github.com/osintwatch/conflict-ingest/internal/service/geo"
)

// Similarity weights and scales. The scales bound how far apart two
// reports of the same incident can plausibly drift.
const (
	weightTemporal   = 0.3
	weightGeographic = 0.4
	weightActor      = 0.2
	weightType       = 0.1

	temporalScale   = 6 * time.Hour
	geographicScale = 50.0 // km
)

// Clusterer groups the events of one run into incident groups via
// single-link clustering. Events are never dropped; anything below
// threshold against every other event becomes a singleton group.
type Clusterer struct {
	threshold float64
	logger    *zap.Logger
}

func NewClusterer(threshold float64, logger *zap.Logger) *Clusterer {
	return &Clusterer{threshold: threshold, logger: logger}
}

// Cluster partitions events into groups. Group confidence is the mean
// pairwise similarity within the group; singletons carry 1.0.
func (c *Clusterer) Cluster(events []*event.Event) []*event.EventGroup {
	n := len(events)
	if n == 0 {
		return nil
	}

	sims := make([][]float64, n)
	for i := range sims {
		sims[i] = make([]float64, n)
	}
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := Similarity(events[i], events[j])
			sims[i][j], sims[j][i] = s, s
			if s >= c.threshold {
				union(parent, i, j)
			}
		}
	}

	clusters := map[int][]int{}
	for i := 0; i < n; i++ {
		root := find(parent, i)
		clusters[root] = append(clusters[root], i)
	}

	groups := make([]*event.EventGroup, 0, len(clusters))
	for _, members := range clusters {
		memberEvents := make([]*event.Event, len(members))
		for i, idx := range members {
			memberEvents[i] = events[idx]
		}
		g := event.NewGroup(memberEvents, meanSimilarity(sims, members))
		for _, ev := range memberEvents {
			id := g.ID
			ev.GroupID = &id
		}
		groups = append(groups, g)
	}

	c.logger.Debug("clustered events",
		zap.Int("events", n), zap.Int("groups", len(groups)))
	return groups
}

// Similarity scores two events in [0,1] across temporal, geographic,
// actor and type dimensions.
func Similarity(a, b *event.Event) float64 {
	return weightTemporal*temporalSimilarity(a, b) +
		weightGeographic*geographicSimilarity(a, b) +
		weightActor*actorSimilarity(a, b) +
		weightType*typeSimilarity(a, b)
}

func temporalSimilarity(a, b *event.Event) float64 {
	delta := a.Timestamp.Sub(b.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return math.Max(0, 1-float64(delta)/float64(temporalScale))
}

func geographicSimilarity(a, b *event.Event) float64 {
	if !a.Location.Valid() || !b.Location.Valid() {
		return 0
	}
	d := geo.Haversine(a.Location.Lat, a.Location.Lng, b.Location.Lat, b.Location.Lng)
	return math.Max(0, 1-d/geographicScale)
}

// actorSimilarity is Jaccard over case-folded actor sets.
func actorSimilarity(a, b *event.Event) float64 {
	setA := actorSet(a.PrimaryActors)
	setB := actorSet(b.PrimaryActors)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for actor := range setA {
		if setB[actor] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func actorSet(actors []string) map[string]bool {
	set := make(map[string]bool, len(actors))
	for _, a := range actors {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			set[a] = true
		}
	}
	return set
}

func typeSimilarity(a, b *event.Event) float64 {
	if a.Type == b.Type {
		return 1
	}
	return 0
}

func meanSimilarity(sims [][]float64, members []int) float64 {
	if len(members) < 2 {
		return 1.0
	}
	var sum float64
	var pairs int
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += sims[members[i]][members[j]]
			pairs++
		}
	}
	return sum / float64(pairs)
}

func find(parent []int, i int) int {
	for parent[i] != i {
		parent[i] = parent[parent[i]]
		i = parent[i]
	}
	return i
}

func union(parent []int, a, b int) {
	ra, rb := find(parent, a), find(parent, b)
	if ra != rb {
		parent[rb] = ra
	}
}
