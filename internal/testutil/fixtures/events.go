package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/osintwatch/conflict-ingest/internal/domain/event"
)

// EventBuilder builds finalized test Event entities.
type EventBuilder struct {
	t           *testing.T
	headline    string
	timestamp   time.Time
	location    *event.Location
	eventType   event.Type
	escalation  int
	killed      *int
	wounded     *int
	actors      []string
	weapons     []string
	articleIDs  []uuid.UUID
	sourceNames []string
	reliability float64
}

// NewEventBuilder creates an EventBuilder with defaults: a moderate
// armed-conflict event in Kharkiv from one source.
func NewEventBuilder(t *testing.T) *EventBuilder {
	t.Helper()
	return &EventBuilder{
		t:         t,
		headline:  "Russian forces shelled residential districts of Kharkiv overnight",
		timestamp: time.Now().UTC().Add(-2 * time.Hour),
		location: &event.Location{
			Lat: 49.9935, Lng: 36.2304, Name: "Kharkiv", Country: "Ukraine",
			Region: "Kharkiv Oblast", Method: event.MethodVerifiedMatch, Confidence: 1.0,
		},
		eventType:   event.TypeArmedConflict,
		escalation:  5,
		actors:      []string{"Russia", "Ukraine"},
		weapons:     []string{"artillery"},
		articleIDs:  []uuid.UUID{uuid.New()},
		sourceNames: []string{"reuters_world"},
		reliability: 0.85,
	}
}

func (b *EventBuilder) WithHeadline(headline string) *EventBuilder {
	b.headline = headline
	return b
}

func (b *EventBuilder) WithTimestamp(ts time.Time) *EventBuilder {
	b.timestamp = ts
	return b
}

func (b *EventBuilder) WithLocation(loc *event.Location) *EventBuilder {
	b.location = loc
	return b
}

func (b *EventBuilder) WithType(t event.Type) *EventBuilder {
	b.eventType = t
	return b
}

func (b *EventBuilder) WithEscalation(score int) *EventBuilder {
	b.escalation = score
	return b
}

func (b *EventBuilder) WithCasualties(killed, wounded int) *EventBuilder {
	b.killed = &killed
	b.wounded = &wounded
	return b
}

func (b *EventBuilder) WithActors(actors ...string) *EventBuilder {
	b.actors = actors
	return b
}

func (b *EventBuilder) WithWeapons(weapons ...string) *EventBuilder {
	b.weapons = weapons
	return b
}

func (b *EventBuilder) WithSources(names ...string) *EventBuilder {
	b.sourceNames = names
	return b
}

func (b *EventBuilder) WithReliability(r float64) *EventBuilder {
	b.reliability = r
	return b
}

// Build constructs and finalizes the Event, failing the test on an
// invalid draft.
func (b *EventBuilder) Build() *event.Event {
	b.t.Helper()
	ev := &event.Event{
		ID:                  uuid.New(),
		Title:               b.headline,
		EnhancedHeadline:    b.headline,
		Timestamp:           b.timestamp,
		TimestampConfidence: event.TimestampMedium,
		Location:            b.location,
		Type:                b.eventType,
		EscalationScore:     b.escalation,
		Casualties:          event.Casualties{Killed: b.killed, Wounded: b.wounded},
		PrimaryActors:       b.actors,
		WeaponTypes:         b.weapons,
		ArticleIDs:          b.articleIDs,
		SourceNames:         b.sourceNames,
		Reliability:         b.reliability,
		CreatedAt:           time.Now().UTC(),
	}
	require.NoError(b.t, ev.Finalize())
	return ev
}
