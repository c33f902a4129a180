package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
)

// articleRepository implements ArticleRepository over PostgreSQL.
// articles_raw.content_hash carries a unique constraint; that constraint
// is the cross-run idempotence anchor.
type articleRepository struct {
	db     DB
	logger *zap.Logger
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db DB, logger *zap.Logger) ArticleRepository {
	return &articleRepository{db: db, logger: logger}
}

// Upsert stores the article and returns the stored id. A duplicate
// insert (same content hash) silently resolves to the existing row's id.
func (a *articleRepository) Upsert(ctx context.Context, art *article.Article) (uuid.UUID, error) {
	if art.ContentHash == "" {
		return uuid.Nil, errors.New("article content hash cannot be empty")
	}

	query := `
		INSERT INTO articles_raw (
			id, url, content_hash, headline, body, published_at,
			source_id, source_name, language, round, query, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING id
	`

	var id uuid.UUID
	err := a.db.QueryRow(ctx, query,
		art.ID, art.URL, art.ContentHash, art.Headline, art.Body, art.PublishedAt,
		art.SourceID, art.SourceName, art.Language, art.Round, art.Query, art.CreatedAt,
	).Scan(&id)

	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("failed to upsert article: %w", err)
	}

	// Conflict path: resolve to the existing id.
	err = a.db.QueryRow(ctx,
		`SELECT id FROM articles_raw WHERE content_hash = $1`,
		art.ContentHash,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve duplicate article: %w", err)
	}
	return id, nil
}

func (a *articleRepository) URLExists(ctx context.Context, canonicalURL string) (bool, error) {
	var exists bool
	err := a.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles_raw WHERE url = $1)`,
		canonicalURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check article url: %w", err)
	}
	return exists, nil
}

func (a *articleRepository) HashExists(ctx context.Context, contentHash string) (bool, error) {
	var exists bool
	err := a.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles_raw WHERE content_hash = $1)`,
		contentHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check article hash: %w", err)
	}
	return exists, nil
}
