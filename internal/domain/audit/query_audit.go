package audit

import (
	"time"

	"github.com/google/uuid"
)

// QueryKind distinguishes broad round-1 queries from targeted round-2
// queries.
type QueryKind string

const (
	QueryKindBroad    QueryKind = "broad"
	QueryKindTargeted QueryKind = "targeted"
)

// SearchQueryAudit is the append-only record of every query executed,
// retained indefinitely for debugging.
type SearchQueryAudit struct {
	ID          uuid.UUID `json:"id"`
	CycleID     uuid.UUID `json:"cycle_id"`
	Text        string    `json:"text"`
	Kind        QueryKind `json:"kind"`
	Round       int       `json:"round"`
	ResultCount int       `json:"result_count"`
	Success     bool      `json:"success"`
	ErrorText   string    `json:"error_text,omitempty"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// NewQueryAudit records one executed query.
func NewQueryAudit(cycleID uuid.UUID, text string, kind QueryKind, round, results int, err error) *SearchQueryAudit {
	entry := &SearchQueryAudit{
		ID:          uuid.New(),
		CycleID:     cycleID,
		Text:        text,
		Kind:        kind,
		Round:       round,
		ResultCount: results,
		Success:     err == nil,
		ExecutedAt:  time.Now().UTC(),
	}
	if err != nil {
		entry.ErrorText = err.Error()
	}
	return entry
}
