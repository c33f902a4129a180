package source

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	// MaxConsecutiveFailures deactivates a source once reached.
	MaxConsecutiveFailures = 10

	healthDecayPerFailure = 0.2
	healthGainPerSuccess  = 0.1
)

// Source is a registered feed or API endpoint. Created on first
// observation, updated after every fetch attempt, never deleted;
// reactivation is operator-only.
type Source struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"` // normalized, unique
	DisplayName string    `json:"display_name"`
	Endpoint    string    `json:"endpoint"`
	Kind        Kind      `json:"kind"`
	Language    string    `json:"language"`
	Regions     []string  `json:"regions"` // declared geographic expertise

	Reliability float64 `json:"reliability"` // [0,100]
	Bias        float64 `json:"bias"`        // [-1,1]

	RateLimitPerHour    int        `json:"rate_limit_per_hour"`
	Health              float64    `json:"health"` // [0,1]
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	DailyAccessCount    int        `json:"daily_access_count"`
	Active              bool       `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Kind int

const (
	KindRSS Kind = iota
	KindSearchAPI
	KindNewsAPI
)

func (k Kind) String() string {
	switch k {
	case KindRSS:
		return "rss"
	case KindSearchAPI:
		return "search_api"
	case KindNewsAPI:
		return "news_api"
	default:
		return "unknown"
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "rss":
		return KindRSS, nil
	case "search_api":
		return KindSearchAPI, nil
	case "news_api":
		return KindNewsAPI, nil
	default:
		return 0, fmt.Errorf("unknown source kind %q", s)
	}
}

// Normalize lowercases a display name and maps runs of non-alphanumerics
// to a single underscore. The result is the source's stable identity key.
func Normalize(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

func NewSource(displayName, endpoint string, kind Kind) (*Source, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, fmt.Errorf("display name cannot be empty")
	}
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	now := time.Now().UTC()
	return &Source{
		ID:               uuid.New(),
		Name:             Normalize(displayName),
		DisplayName:      displayName,
		Endpoint:         endpoint,
		Kind:             kind,
		Language:         "en",
		Reliability:      50,
		RateLimitPerHour: 60,
		Health:           1.0,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ApplySuccess records a successful fetch. Health recovers by
// 0.1·successWeight, capped at 1; consecutive failures reset.
func (s *Source) ApplySuccess(successWeight float64) {
	now := time.Now().UTC()
	s.DailyAccessCount++
	s.ConsecutiveFailures = 0
	s.Health = min(1.0, s.Health+healthGainPerSuccess*successWeight)
	s.LastSuccessAt = &now
	s.UpdatedAt = now
}

// ApplyFailure records a failed fetch attempt. Health never rises on
// failure; at MaxConsecutiveFailures the source deactivates with
// health forced to zero.
func (s *Source) ApplyFailure() {
	s.ConsecutiveFailures++
	s.Health = max(0, s.Health-healthDecayPerFailure)
	if s.ConsecutiveFailures >= MaxConsecutiveFailures {
		s.Health = 0
		s.Active = false
	}
	s.UpdatedAt = time.Now().UTC()
}

// Reactivate is the operator-only path back into rotation.
func (s *Source) Reactivate() {
	s.Active = true
	s.ConsecutiveFailures = 0
	s.Health = 0.5
	s.UpdatedAt = time.Now().UTC()
}

// ResetDailyCount is invoked at the top of each accounting window.
func (s *Source) ResetDailyCount() {
	s.DailyAccessCount = 0
	s.UpdatedAt = time.Now().UTC()
}
