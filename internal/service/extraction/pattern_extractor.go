package extraction

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
	"github.com/osintwatch/conflict-ingest/internal/domain/event"
	"github.com/osintwatch/conflict-ingest/internal/service/textproc"
)

// extractPattern is the deterministic fallback: at most one event per
// article, built from the regex annotations alone. It never errors; an
// article that shows no extractable signal yields nil.
func extractPattern(art *article.Article, ann *Annotation) []*event.Event {
	text := art.Headline + " " + art.Body
	killed, wounded, missing := textproc.ParseCasualties(text)

	var weapons []string
	var actors []string
	var locationHint *event.Location
	if ann.Entities != nil {
		for _, w := range ann.Entities.Weapons {
			weapons = append(weapons, w.Text)
		}
		for _, o := range ann.Entities.Organizations {
			actors = append(actors, o.Text)
			if len(actors) == 3 {
				break
			}
		}
		if len(ann.Entities.Locations) > 0 {
			locationHint = &event.Location{
				Name:   ann.Entities.Locations[0].Text,
				Method: event.MethodUnresolved,
			}
		}
	}

	// No casualties, no weapons, no actors: nothing to assert.
	if killed == nil && wounded == nil && missing == nil &&
		len(weapons) == 0 && len(actors) == 0 {
		return nil
	}

	ev := &event.Event{
		ID:                  uuid.New(),
		Title:               art.Headline,
		EnhancedHeadline:    art.Headline,
		Timestamp:           ann.EventTime,
		TimestampConfidence: event.TimestampConfidence(ann.TimeConfidence),
		Location:            locationHint,
		Type:                classifyPattern(text),
		EscalationScore:     patternEscalation(killed, weapons),
		Casualties:          event.Casualties{Killed: killed, Wounded: wounded, Missing: missing},
		PrimaryActors:       dedupeStrings(actors),
		WeaponTypes:         dedupeStrings(weapons),
		ArticleIDs:          []uuid.UUID{art.ID},
		SourceNames:         []string{art.SourceName},
		// Pattern extraction asserts less, so it scores lower than a
		// verified model response from the same source.
		Reliability: combineReliability(ann.SourceReliability, 0.4),
		CreatedAt:   time.Now().UTC(),
	}
	return []*event.Event{ev}
}

func classifyPattern(text string) event.Type {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "suicide bomb"),
		strings.Contains(lower, "terror"):
		return event.TypeTerrorism
	case strings.Contains(lower, "protest"),
		strings.Contains(lower, "riot"):
		return event.TypeCivilUnrest
	case strings.Contains(lower, "military exercise"),
		strings.Contains(lower, "military drill"),
		strings.Contains(lower, "war games"):
		return event.TypeMilitaryExercise
	case strings.Contains(lower, "peace talks"),
		strings.Contains(lower, "ceasefire agreement"),
		strings.Contains(lower, "summit"):
		return event.TypeDiplomatic
	default:
		return event.TypeArmedConflict
	}
}

// patternEscalation is a conservative heuristic; the contractual CBRN
// and mass-casualty floors are applied later by Finalize.
func patternEscalation(killed *int, weapons []string) int {
	score := 3
	if killed != nil {
		switch {
		case *killed >= 50:
			score = 6
		case *killed >= 10:
			score = 5
		case *killed > 0:
			score = 4
		}
	}
	if len(weapons) > 0 && score < 4 {
		score = 4
	}
	return score
}
