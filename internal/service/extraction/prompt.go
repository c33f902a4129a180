package extraction

import (
	"fmt"
	"strings"
	"time"
)

const maxPromptBody = 8000

const extractionSystem = `You analyze news articles about armed conflict and return structured events.
Respond with ONE JSON object and nothing else, in exactly this shape:
{
  "is_conflict": true,
  "events": [
    {
      "enhanced_headline": "WHO did WHAT to WHOM, WHERE, WHEN",
      "conflict_type": "armed_conflict|terrorism|military_operation|civil_unrest|military_exercise|diplomatic|other",
      "severity": "low|medium|high|critical",
      "escalation_score": 1,
      "primary_actors": ["..."],
      "location": {"name": "...", "country": "...", "city": "..."},
      "casualties": {"killed": 0, "wounded": 0},
      "weapons": ["..."],
      "timestamp": "RFC3339 or empty",
      "verification_confidence": 0.0
    }
  ]
}
Rules:
- is_conflict is false when the article is not about armed conflict; events must then be empty.
- escalation_score is an integer 1-10; 10 is nuclear-exchange level.
- One article may describe several distinct events; emit each separately.
- Use null for unknown casualty counts, never 0.
- verification_confidence in [0,1] reflects how well the article supports the event.`

func buildPrompt(headline, body string, published time.Time) string {
	if len(body) > maxPromptBody {
		body = body[:maxPromptBody]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Published: %s\n", published.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Headline: %s\n\n", headline)
	sb.WriteString(body)
	return sb.String()
}
