package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/audit"
)

// queryAuditRepository implements QueryAuditRepository; rows are
// append-only and retained indefinitely.
type queryAuditRepository struct {
	db     DB
	logger *zap.Logger
}

// NewQueryAuditRepository creates a new query audit repository
func NewQueryAuditRepository(db DB, logger *zap.Logger) QueryAuditRepository {
	return &queryAuditRepository{db: db, logger: logger}
}

func (r *queryAuditRepository) Append(ctx context.Context, entry *audit.SearchQueryAudit) error {
	query := `
		INSERT INTO search_queries (
			id, cycle_id, query_text, kind, round,
			result_count, success, error_text, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.CycleID, entry.Text, string(entry.Kind), entry.Round,
		entry.ResultCount, entry.Success, entry.ErrorText, entry.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append query audit: %w", err)
	}
	return nil
}

func (r *queryAuditRepository) ListByCycle(ctx context.Context, cycleID uuid.UUID) ([]*audit.SearchQueryAudit, error) {
	query := `
		SELECT id, cycle_id, query_text, kind, round,
			result_count, success, error_text, executed_at
		FROM search_queries
		WHERE cycle_id = $1
		ORDER BY executed_at
	`

	rows, err := r.db.Query(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list query audit: %w", err)
	}
	defer rows.Close()

	var entries []*audit.SearchQueryAudit
	for rows.Next() {
		var e audit.SearchQueryAudit
		var kind string
		if err := rows.Scan(
			&e.ID, &e.CycleID, &e.Text, &kind, &e.Round,
			&e.ResultCount, &e.Success, &e.ErrorText, &e.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan query audit row: %w", err)
		}
		e.Kind = audit.QueryKind(kind)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
