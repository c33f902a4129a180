package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/event"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/config"
)

// Alert is the sink-facing projection of a flagged event.
type Alert struct {
	EventID         uuid.UUID `json:"event_id"`
	Headline        string    `json:"headline"`
	EventType       string    `json:"event_type"`
	Severity        string    `json:"severity"`
	EscalationScore int       `json:"escalation_score"`
	Killed          *int      `json:"killed,omitempty"`
	Wounded         *int      `json:"wounded,omitempty"`
	LocationName    string    `json:"location_name,omitempty"`
	Country         string    `json:"country,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Reason          string    `json:"reason"`
	EmittedAt       time.Time `json:"emitted_at"`
}

// Sink receives alerts. Delivery failures are logged and never block
// the pipeline or the other sinks.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, alert Alert) error
}

// Emitter flags events exceeding the configured thresholds and fans
// each alert out to every sink once per event per cycle.
type Emitter struct {
	cfg    config.AlertConfig
	sinks  []Sink
	logger *zap.Logger

	mu   sync.Mutex
	seen map[uuid.UUID]bool
}

func NewEmitter(cfg config.AlertConfig, sinks []Sink, logger *zap.Logger) *Emitter {
	return &Emitter{
		cfg:    cfg,
		sinks:  sinks,
		logger: logger,
		seen:   make(map[uuid.UUID]bool),
	}
}

// ResetCycle clears per-cycle dedup state. Called by the orchestrator
// at the start of each cycle.
func (e *Emitter) ResetCycle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = make(map[uuid.UUID]bool)
}

// EmitAll evaluates every event and returns the number of alerts sent.
func (e *Emitter) EmitAll(ctx context.Context, events []*event.Event) int {
	emitted := 0
	for _, ev := range events {
		reason, fire := e.evaluate(ev)
		if !fire {
			continue
		}
		if !e.admit(ev.ID) {
			continue
		}
		e.deliver(ctx, toAlert(ev, reason))
		emitted++
	}
	return emitted
}

// evaluate applies the threshold disjunction: severity at least high,
// escalation at or above the floor, killed above the casualty floor, or
// any CBRN-class weapon.
func (e *Emitter) evaluate(ev *event.Event) (string, bool) {
	switch {
	case ev.Severity >= event.SeverityHigh:
		return "severity", true
	case ev.EscalationScore >= e.cfg.MinScore:
		return "escalation_score", true
	case ev.Casualties.Killed != nil && *ev.Casualties.Killed > e.cfg.MinCasualties:
		return "mass_casualty", true
	case event.HasCBRNWeapon(ev.WeaponTypes):
		return "cbrn_weapon", true
	}
	return "", false
}

func (e *Emitter) admit(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seen[id] {
		return false
	}
	e.seen[id] = true
	return true
}

func (e *Emitter) deliver(ctx context.Context, alert Alert) {
	for _, sink := range e.sinks {
		if err := sink.Deliver(ctx, alert); err != nil {
			e.logger.Warn("alert delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("event_id", alert.EventID.String()),
				zap.Error(err))
		}
	}
}

func toAlert(ev *event.Event, reason string) Alert {
	a := Alert{
		EventID:         ev.ID,
		Headline:        ev.EnhancedHeadline,
		EventType:       ev.Type.String(),
		Severity:        ev.Severity.String(),
		EscalationScore: ev.EscalationScore,
		Killed:          ev.Casualties.Killed,
		Wounded:         ev.Casualties.Wounded,
		Timestamp:       ev.Timestamp,
		Reason:          reason,
		EmittedAt:       time.Now().UTC(),
	}
	if ev.Location != nil {
		a.LocationName = ev.Location.Name
		a.Country = ev.Location.Country
	}
	return a
}
