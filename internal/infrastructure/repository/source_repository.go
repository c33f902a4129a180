package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/source"
)

// sourceRepository implements SourceRepository over PostgreSQL
type sourceRepository struct {
	db     DB
	logger *zap.Logger
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(db DB, logger *zap.Logger) SourceRepository {
	return &sourceRepository{db: db, logger: logger}
}

const sourceColumns = `
	id, name, display_name, endpoint, kind, language, regions,
	reliability, bias, rate_limit_per_hour, health, consecutive_failures,
	last_success_at, daily_access_count, active, created_at, updated_at`

// Upsert inserts or updates a source keyed on normalized name. Health
// tracking fields are preserved on conflict; descriptive fields win.
func (r *sourceRepository) Upsert(ctx context.Context, s *source.Source) error {
	if s.Name == "" {
		return errors.New("source name cannot be empty")
	}

	query := `
		INSERT INTO sources (` + sourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			endpoint = EXCLUDED.endpoint,
			kind = EXCLUDED.kind,
			language = EXCLUDED.language,
			regions = EXCLUDED.regions,
			reliability = EXCLUDED.reliability,
			bias = EXCLUDED.bias,
			rate_limit_per_hour = EXCLUDED.rate_limit_per_hour,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query,
		s.ID, s.Name, s.DisplayName, s.Endpoint, s.Kind.String(), s.Language, s.Regions,
		s.Reliability, s.Bias, s.RateLimitPerHour, s.Health, s.ConsecutiveFailures,
		s.LastSuccessAt, s.DailyAccessCount, s.Active, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert source %s: %w", s.Name, err)
	}
	return nil
}

// GetByName retrieves a source by its normalized name
func (r *sourceRepository) GetByName(ctx context.Context, name string) (*source.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE name = $1`

	s, err := scanSource(r.db.QueryRow(ctx, query, source.Normalize(name)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("source", name)
		}
		return nil, fmt.Errorf("failed to get source %s: %w", name, err)
	}
	return s, nil
}

// List returns sources matching the filter, active only by default
func (r *sourceRepository) List(ctx context.Context, filter SourceFilter) ([]*source.Source, error) {
	var conditions []string
	var args []any

	if !filter.IncludeInactive {
		conditions = append(conditions, "active = true")
	}
	if filter.Kind != nil {
		args = append(args, filter.Kind.String())
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.Language != "" {
		args = append(args, filter.Language)
		conditions = append(conditions, fmt.Sprintf("language = $%d", len(args)))
	}

	query := `SELECT ` + sourceColumns + ` FROM sources`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []*source.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// UpdateHealth persists the mutable health-tracking fields
func (r *sourceRepository) UpdateHealth(ctx context.Context, s *source.Source) error {
	query := `
		UPDATE sources SET
			health = $2,
			consecutive_failures = $3,
			last_success_at = $4,
			daily_access_count = $5,
			active = $6,
			updated_at = $7
		WHERE name = $1
	`

	tag, err := r.db.Exec(ctx, query,
		s.Name, s.Health, s.ConsecutiveFailures, s.LastSuccessAt,
		s.DailyAccessCount, s.Active, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update source health for %s: %w", s.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("source", s.Name)
	}
	return nil
}

// Reactivate restores a deactivated source; operator-only
func (r *sourceRepository) Reactivate(ctx context.Context, name string) error {
	query := `
		UPDATE sources SET
			active = true,
			consecutive_failures = 0,
			health = 0.5,
			updated_at = now()
		WHERE name = $1
	`

	tag, err := r.db.Exec(ctx, query, source.Normalize(name))
	if err != nil {
		return fmt.Errorf("failed to reactivate source %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("source", name)
	}

	r.logger.Info("source reactivated", zap.String("name", name))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*source.Source, error) {
	var s source.Source
	var kindStr string

	err := row.Scan(
		&s.ID, &s.Name, &s.DisplayName, &s.Endpoint, &kindStr, &s.Language, &s.Regions,
		&s.Reliability, &s.Bias, &s.RateLimitPerHour, &s.Health, &s.ConsecutiveFailures,
		&s.LastSuccessAt, &s.DailyAccessCount, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	kind, err := source.ParseKind(kindStr)
	if err != nil {
		return nil, err
	}
	s.Kind = kind
	return &s, nil
}
