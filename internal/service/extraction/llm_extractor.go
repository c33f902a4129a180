package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
	"github.com/osintwatch/conflict-ingest/internal/domain/event"
	"github.com/osintwatch/conflict-ingest/internal/infrastructure/llm"

	domainerrors "github.com/osintwatch/conflict-ingest/internal/domain/errors"
)

// Wire shape of the model response. Schema violations anywhere in it
// send the whole article down the pattern path.
type llmResponse struct {
	IsConflict bool       `json:"is_conflict"`
	Events     []llmEvent `json:"events"`
}

type llmEvent struct {
	EnhancedHeadline string       `json:"enhanced_headline"`
	ConflictType     string       `json:"conflict_type"`
	Severity         string       `json:"severity"`
	EscalationScore  int          `json:"escalation_score"`
	PrimaryActors    []string     `json:"primary_actors"`
	Location         *llmLocation `json:"location"`
	Casualties       struct {
		Killed  *int `json:"killed"`
		Wounded *int `json:"wounded"`
	} `json:"casualties"`
	Weapons                []string `json:"weapons"`
	Timestamp              string   `json:"timestamp"`
	VerificationConfidence float64  `json:"verification_confidence"`
}

type llmLocation struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	City    string `json:"city"`
}

// parseResponse validates the model output against the expected schema
// and converts it into event drafts. A non-conflict verdict yields an
// empty slice with no error.
func parseResponse(raw string, art *article.Article, ann *Annotation) ([]*event.Event, error) {
	var resp llmResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &resp); err != nil {
		return nil, domainerrors.NewLLMError("response is not valid JSON").WithCause(err)
	}

	if !resp.IsConflict {
		return nil, nil
	}
	if len(resp.Events) == 0 {
		return nil, domainerrors.NewLLMError("conflict verdict with no events")
	}

	out := make([]*event.Event, 0, len(resp.Events))
	for i, le := range resp.Events {
		ev, err := le.toEvent(art, ann)
		if err != nil {
			return nil, domainerrors.NewLLMError(fmt.Sprintf("event %d: %v", i, err))
		}
		out = append(out, ev)
	}
	return out, nil
}

func (le llmEvent) toEvent(art *article.Article, ann *Annotation) (*event.Event, error) {
	if strings.TrimSpace(le.EnhancedHeadline) == "" {
		return nil, fmt.Errorf("missing enhanced_headline")
	}
	if le.EscalationScore < 1 || le.EscalationScore > 10 {
		return nil, fmt.Errorf("escalation_score %d out of range", le.EscalationScore)
	}
	if le.VerificationConfidence < 0 || le.VerificationConfidence > 1 {
		return nil, fmt.Errorf("verification_confidence %f out of range", le.VerificationConfidence)
	}
	if le.Casualties.Killed != nil && *le.Casualties.Killed < 0 {
		return nil, fmt.Errorf("negative killed count")
	}
	if le.Casualties.Wounded != nil && *le.Casualties.Wounded < 0 {
		return nil, fmt.Errorf("negative wounded count")
	}

	ts := ann.EventTime
	tsConf := event.TimestampConfidence(ann.TimeConfidence)
	if le.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, le.Timestamp); err == nil {
			ts = parsed.UTC()
			tsConf = event.TimestampHigh
		}
	}

	ev := &event.Event{
		ID:                  uuid.New(),
		Title:               art.Headline,
		EnhancedHeadline:    strings.TrimSpace(le.EnhancedHeadline),
		Timestamp:           ts,
		TimestampConfidence: tsConf,
		Type:                event.ParseType(le.ConflictType),
		EscalationScore:     le.EscalationScore,
		Casualties: event.Casualties{
			Killed:  le.Casualties.Killed,
			Wounded: le.Casualties.Wounded,
		},
		PrimaryActors: dedupeStrings(le.PrimaryActors),
		WeaponTypes:   dedupeStrings(le.Weapons),
		ArticleIDs:    []uuid.UUID{art.ID},
		SourceNames:   []string{art.SourceName},
		Reliability:   combineReliability(ann.SourceReliability, le.VerificationConfidence),
		CreatedAt:     time.Now().UTC(),
	}

	if le.Location != nil && strings.TrimSpace(le.Location.Name)+strings.TrimSpace(le.Location.City) != "" {
		name := strings.TrimSpace(le.Location.City)
		if name == "" {
			name = strings.TrimSpace(le.Location.Name)
		}
		ev.Location = &event.Location{
			Name:    name,
			Country: strings.TrimSpace(le.Location.Country),
			Method:  event.MethodUnresolved,
		}
	}

	return ev, nil
}

// combineReliability blends the source's track record with the model's
// per-event confidence, both mapped into [0,1].
func combineReliability(sourceReliability, verification float64) float64 {
	src := sourceReliability / 100
	if src < 0 {
		src = 0
	}
	if src > 1 {
		src = 1
	}
	if verification == 0 {
		verification = 0.5
	}
	return 0.6*src + 0.4*verification
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
