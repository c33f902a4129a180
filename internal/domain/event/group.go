package event

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// EventGroup clusters near-duplicate events into one real-world
// incident. Groups of size 1 are allowed and carry Corroborated=false.
type EventGroup struct {
	ID             uuid.UUID   `json:"id"`
	MemberEventIDs []uuid.UUID `json:"member_event_ids"` // ordered
	PrimaryEventID uuid.UUID   `json:"primary_event_id"` // ∈ members

	GroupConfidence      float64 `json:"group_confidence"`       // [0,1]
	CorroborationCount   int     `json:"corroboration_count"`    // distinct sources
	SourceDiversityScore float64 `json:"source_diversity_score"` // [0,1]
	Corroborated         bool    `json:"corroborated"`

	CreatedAt time.Time `json:"created_at"`
}

// NewGroup builds a group over members, selecting the primary event and
// computing corroboration from the members' source sets.
func NewGroup(members []*Event, groupConfidence float64) *EventGroup {
	primary := SelectPrimary(members)

	ids := make([]uuid.UUID, len(members))
	distinctSources := map[string]bool{}
	for i, m := range members {
		ids[i] = m.ID
		for _, s := range m.SourceNames {
			distinctSources[s] = true
		}
	}

	diversity := 0.0
	if len(members) > 0 {
		diversity = float64(len(distinctSources)) / float64(len(members))
		if diversity > 1 {
			diversity = 1
		}
	}

	return &EventGroup{
		ID:                   uuid.New(),
		MemberEventIDs:       ids,
		PrimaryEventID:       primary.ID,
		GroupConfidence:      groupConfidence,
		CorroborationCount:   len(distinctSources),
		SourceDiversityScore: diversity,
		Corroborated:         len(members) > 1,
		CreatedAt:            time.Now().UTC(),
	}
}

// SelectPrimary picks the highest-reliability member; ties break by
// earliest timestamp, then lexicographic event id.
func SelectPrimary(members []*Event) *Event {
	if len(members) == 0 {
		return nil
	}

	sorted := make([]*Event, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Reliability != b.Reliability {
			return a.Reliability > b.Reliability
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID.String() < b.ID.String()
	})
	return sorted[0]
}

// Contains reports whether the group holds the given event id.
func (g *EventGroup) Contains(id uuid.UUID) bool {
	for _, m := range g.MemberEventIDs {
		if m == id {
			return true
		}
	}
	return false
}
