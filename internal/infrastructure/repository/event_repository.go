package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/event"
)

// maxBatchSize bounds a single insert transaction.
const maxBatchSize = 50

// eventRepository implements EventRepository over PostgreSQL. Each batch
// writes atomically; a failed batch is retried once, then serialized to
// the offline spool and skipped so the cycle continues.
type eventRepository struct {
	db     DB
	spool  *Spool
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db DB, spool *Spool, logger *zap.Logger) EventRepository {
	return &eventRepository{db: db, spool: spool, logger: logger}
}

// InsertEvents writes events in batches of at most maxBatchSize.
func (r *eventRepository) InsertEvents(ctx context.Context, events []*event.Event) error {
	for start := 0; start < len(events); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[start:end]

		if err := r.withBatchRetry(ctx, "events", batch, func() error {
			return r.insertEventBatch(ctx, batch)
		}); err != nil {
			return err
		}
	}
	return nil
}

// InsertEventGroups writes groups in batches of at most maxBatchSize.
func (r *eventRepository) InsertEventGroups(ctx context.Context, groups []*event.EventGroup) error {
	for start := 0; start < len(groups); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(groups) {
			end = len(groups)
		}
		batch := groups[start:end]

		if err := r.withBatchRetry(ctx, "event_groups", batch, func() error {
			return r.insertGroupBatch(ctx, batch)
		}); err != nil {
			return err
		}
	}
	return nil
}

// withBatchRetry runs the write, retries once, and on the second failure
// spools the batch contents and skips it.
func (r *eventRepository) withBatchRetry(ctx context.Context, table string, payload any, write func() error) error {
	err := write()
	if err == nil {
		return nil
	}

	r.logger.Warn("batch insert failed, retrying once",
		zap.String("table", table),
		zap.Error(err))

	if err = write(); err == nil {
		return nil
	}

	r.logger.Error("batch insert failed twice, spooling",
		zap.String("table", table),
		zap.Error(err))

	if spoolErr := r.spool.WriteBatch(ctx, table, payload); spoolErr != nil {
		return fmt.Errorf("batch insert failed and spool write failed: %v (insert: %w)", spoolErr, err)
	}
	return nil
}

func (r *eventRepository) insertEventBatch(ctx context.Context, events []*event.Event) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin event batch: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO events (
			id, title, enhanced_headline, event_time, time_confidence,
			lat, lng, location, location_name, country, region,
			extraction_method, location_confidence,
			event_type, severity, escalation_score, casualties,
			primary_actors, weapon_types, article_ids, source_names,
			reliability, tags, group_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, CASE WHEN $6::float8 IS NULL THEN NULL ELSE point($7::float8, $6::float8) END, $8, $9, $10,
			$11, $12,
			$13, $14, $15, $16,
			$17, $18, $19, $20,
			$21, $22, $23, $24
		)
	`

	for _, e := range events {
		casualtiesJSON, err := json.Marshal(e.Casualties)
		if err != nil {
			return fmt.Errorf("failed to marshal casualties for event %s: %w", e.ID, err)
		}

		var lat, lng *float64
		var locName, country, region, method string
		var locConfidence float64
		if e.Location != nil {
			lat, lng = &e.Location.Lat, &e.Location.Lng
			locName = e.Location.Name
			country = e.Location.Country
			region = e.Location.Region
			method = string(e.Location.Method)
			locConfidence = e.Location.Confidence
		} else {
			method = string(event.MethodUnresolved)
		}

		if _, err := tx.Exec(ctx, query,
			e.ID, e.Title, e.EnhancedHeadline, e.Timestamp, string(e.TimestampConfidence),
			lat, lng, locName, country, region,
			method, locConfidence,
			e.Type.String(), e.Severity.String(), e.EscalationScore, casualtiesJSON,
			e.PrimaryActors, e.WeaponTypes, e.ArticleIDs, e.SourceNames,
			e.Reliability, e.Tags, e.GroupID, e.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", e.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *eventRepository) insertGroupBatch(ctx context.Context, groups []*event.EventGroup) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin group batch: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO event_groups (
			id, member_event_ids, primary_event_id, group_confidence,
			corroboration_count, source_diversity_score, corroborated, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, g := range groups {
		if _, err := tx.Exec(ctx, query,
			g.ID, g.MemberEventIDs, g.PrimaryEventID, g.GroupConfidence,
			g.CorroborationCount, g.SourceDiversityScore, g.Corroborated, g.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert event group %s: %w", g.ID, err)
		}

		// Back-fill the membership pointer on each member row.
		if _, err := tx.Exec(ctx,
			`UPDATE events SET group_id = $1 WHERE id = ANY($2)`,
			g.ID, g.MemberEventIDs,
		); err != nil {
			return fmt.Errorf("failed to set group pointers for %s: %w", g.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *eventRepository) SetGroupID(ctx context.Context, eventID, groupID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET group_id = $2 WHERE id = $1`,
		eventID, groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to set group id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("event", eventID.String())
	}
	return nil
}

const eventColumns = `
	id, title, enhanced_headline, event_time, time_confidence,
	lat, lng, location_name, country, region,
	extraction_method, location_confidence,
	event_type, severity, escalation_score, casualties,
	primary_actors, weapon_types, article_ids, source_names,
	reliability, tags, group_id, created_at`

func (r *eventRepository) HighEscalationSnapshot(ctx context.Context, minScore int) ([]*event.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE escalation_score >= $1
		ORDER BY escalation_score DESC, event_time DESC
	`

	rows, err := r.db.Query(ctx, query, minScore)
	if err != nil {
		return nil, fmt.Errorf("failed to query high-escalation events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *eventRepository) Query(ctx context.Context, filter EventFilter) ([]*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE escalation_score >= $1`
	args := []any{filter.MinEscalation}

	if filter.SinceHours > 0 {
		args = append(args, filter.SinceHours)
		query += fmt.Sprintf(" AND event_time >= now() - ($%d || ' hours')::interval", len(args))
	}
	query += " ORDER BY event_time DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows pgxRows) ([]*event.Event, error) {
	var events []*event.Event
	for rows.Next() {
		var e event.Event
		var lat, lng *float64
		var locName, country, region, method, typeStr, sevStr, tsConf string
		var locConfidence float64
		var casualtiesJSON []byte

		err := rows.Scan(
			&e.ID, &e.Title, &e.EnhancedHeadline, &e.Timestamp, &tsConf,
			&lat, &lng, &locName, &country, &region,
			&method, &locConfidence,
			&typeStr, &sevStr, &e.EscalationScore, &casualtiesJSON,
			&e.PrimaryActors, &e.WeaponTypes, &e.ArticleIDs, &e.SourceNames,
			&e.Reliability, &e.Tags, &e.GroupID, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		e.TimestampConfidence = event.TimestampConfidence(tsConf)
		e.Type = event.ParseType(typeStr)
		if sev, err := event.ParseSeverity(sevStr); err == nil {
			e.Severity = sev
		}
		if len(casualtiesJSON) > 0 {
			if err := json.Unmarshal(casualtiesJSON, &e.Casualties); err != nil {
				return nil, fmt.Errorf("failed to unmarshal casualties: %w", err)
			}
		}
		if lat != nil && lng != nil {
			e.Location = &event.Location{
				Lat: *lat, Lng: *lng,
				Name: locName, Country: country, Region: region,
				Method: event.Method(method), Confidence: locConfidence,
			}
		}

		events = append(events, &e)
	}
	return events, rows.Err()
}
