package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a structured conflict event extracted from one article.
// Created by the extractor, finalized by the clusterer; immutable after
// persistence except for group-membership pointers.
type Event struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	EnhancedHeadline string    `json:"enhanced_headline"` // "WHO did WHAT to WHOM, WHERE, WHEN"

	Timestamp           time.Time           `json:"timestamp"`
	TimestampConfidence TimestampConfidence `json:"timestamp_confidence"`

	Location *Location `json:"location,omitempty"`

	Type            Type     `json:"event_type"`
	Severity        Severity `json:"severity"`
	EscalationScore int      `json:"escalation_score"` // 1-10

	Casualties Casualties `json:"casualties"`

	PrimaryActors []string    `json:"primary_actors"`
	WeaponTypes   []string    `json:"weapon_types"`
	ArticleIDs    []uuid.UUID `json:"article_ids"` // ≥1
	SourceNames   []string    `json:"source_names"`

	Reliability float64  `json:"reliability"` // [0,1]
	Tags        []string `json:"tags,omitempty"`

	// GroupID is set after the clusterer assigns membership.
	GroupID *uuid.UUID `json:"group_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Casualties carries non-negative counts; nil means unreported.
type Casualties struct {
	Killed  *int `json:"killed,omitempty"`
	Wounded *int `json:"wounded,omitempty"`
	Missing *int `json:"missing,omitempty"`
}

// Location pairs coordinates with the extraction method that produced
// them. Coordinates must lie in WGS84 ranges.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Region  string  `json:"region"`
	Method  Method  `json:"extraction_method"`
	// Confidence of the resolution strategy that fired, [0,1].
	Confidence float64 `json:"confidence"`
}

// Valid reports whether coordinates lie within WGS84 ranges.
func (l *Location) Valid() bool {
	if l == nil {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

type Method string

const (
	MethodVerifiedMatch      Method = "verified_match"
	MethodVerifiedCorrection Method = "verified_correction"
	MethodEnhancedMapping    Method = "enhanced_mapping"
	MethodBaseMapping        Method = "base_mapping"
	MethodRelative           Method = "relative"
	MethodGeocodingAPI       Method = "geocoding_api"
	MethodUnresolved         Method = "unresolved"
)

type Type int

const (
	TypeArmedConflict Type = iota
	TypeTerrorism
	TypeMilitaryOperation
	TypeCivilUnrest
	TypeMilitaryExercise
	TypeDiplomatic
	TypeOther
)

func (t Type) String() string {
	switch t {
	case TypeArmedConflict:
		return "armed_conflict"
	case TypeTerrorism:
		return "terrorism"
	case TypeMilitaryOperation:
		return "military_operation"
	case TypeCivilUnrest:
		return "civil_unrest"
	case TypeMilitaryExercise:
		return "military_exercise"
	case TypeDiplomatic:
		return "diplomatic"
	default:
		return "other"
	}
}

func ParseType(s string) Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "armed_conflict", "armed conflict":
		return TypeArmedConflict
	case "terrorism", "terrorist_attack":
		return TypeTerrorism
	case "military_operation", "military operation":
		return TypeMilitaryOperation
	case "civil_unrest", "civil unrest", "protest":
		return TypeCivilUnrest
	case "military_exercise", "military exercise":
		return TypeMilitaryExercise
	case "diplomatic":
		return TypeDiplomatic
	default:
		return TypeOther
	}
}

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

type TimestampConfidence string

const (
	TimestampHigh   TimestampConfidence = "high"
	TimestampMedium TimestampConfidence = "medium"
	TimestampLow    TimestampConfidence = "low"
)

// SeverityForEscalation maps an escalation score onto its severity
// bucket: low 1-3, medium 4-5, high 6-7, critical 8-10.
func SeverityForEscalation(score int) Severity {
	switch {
	case score >= 8:
		return SeverityCritical
	case score >= 6:
		return SeverityHigh
	case score >= 4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// CBRNWeapons are the weapon classes that force critical escalation.
var CBRNWeapons = map[string]bool{
	"nuclear":          true,
	"chemical":         true,
	"biological":       true,
	"radiological":     true,
	"tactical nuclear": true,
	"nerve agent":      true,
}

// HasCBRNWeapon reports whether any weapon string matches the CBRN set.
func HasCBRNWeapon(weapons []string) bool {
	for _, w := range weapons {
		lw := strings.ToLower(strings.TrimSpace(w))
		if CBRNWeapons[lw] {
			return true
		}
		for cbrn := range CBRNWeapons {
			if strings.Contains(lw, cbrn) {
				return true
			}
		}
	}
	return false
}

// ClampEscalation applies the contractual overrides: CBRN weapons force
// a floor of 8, mass-casualty (killed ≥ 100) forces a floor of 7. Scores
// are clamped upward only, then bounded to [1,10].
func ClampEscalation(score int, weapons []string, killed *int) int {
	if HasCBRNWeapon(weapons) && score < 8 {
		score = 8
	}
	if killed != nil && *killed >= 100 && score < 7 {
		score = 7
	}
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

// Finalize clamps the escalation score, derives the severity bucket and
// validates coordinates. Called by the extractor before handoff.
func (e *Event) Finalize() error {
	if len(e.ArticleIDs) == 0 {
		return fmt.Errorf("event %s has no source articles", e.ID)
	}
	e.EscalationScore = ClampEscalation(e.EscalationScore, e.WeaponTypes, e.Casualties.Killed)
	e.Severity = SeverityForEscalation(e.EscalationScore)

	if e.Location != nil && !e.Location.Valid() {
		return fmt.Errorf("event %s has out-of-range coordinates (%f, %f)",
			e.ID, e.Location.Lat, e.Location.Lng)
	}
	if e.Reliability < 0 {
		e.Reliability = 0
	}
	if e.Reliability > 1 {
		e.Reliability = 1
	}
	return nil
}
