package extraction

import (
	"context"
	"encoding/json"

	"github.com/osintwatch/conflict-ingest/internal/infrastructure/llm"
	"github.com/osintwatch/conflict-ingest/internal/service/textproc"

	domainerrors "github.com/osintwatch/conflict-ingest/internal/domain/errors"
)

const recallSystem = `You extract named entities from conflict news text.
Respond with a single JSON object and nothing else:
{"persons":[{"text":"...","confidence":0.0}],"organizations":[...],"locations":[...],"weapons":[...],"casualties":[...]}
Confidence is your certainty in [0,1]. Empty arrays are fine.`

const maxRecallBody = 6000

// EntityRecaller adapts the model client to the text processor's
// optional recall hook. Errors surface to the caller, which keeps its
// pattern-extracted baseline.
type EntityRecaller struct {
	completer llm.Completer
}

func NewEntityRecaller(completer llm.Completer) *EntityRecaller {
	return &EntityRecaller{completer: completer}
}

func (r *EntityRecaller) RecallEntities(ctx context.Context, text string) (*textproc.Entities, error) {
	if len(text) > maxRecallBody {
		text = text[:maxRecallBody]
	}
	out, err := r.completer.Complete(ctx, recallSystem, text)
	if err != nil {
		return nil, err
	}

	var entities textproc.Entities
	if err := json.Unmarshal([]byte(llm.ExtractJSON(out)), &entities); err != nil {
		return nil, domainerrors.NewParseError("entity recall returned malformed JSON").WithCause(err)
	}
	return &entities, nil
}
