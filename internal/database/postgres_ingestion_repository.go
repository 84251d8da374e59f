package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/driftwatch/driftwatch/internal/models"
)

// PostgresIngestionRepository implements IngestionRepository using PostgreSQL.
// The unique index on (source_id, content_hash) is the dedup backstop; the
// application check exists to make duplicates a recognized outcome rather
// than a constraint violation.
type PostgresIngestionRepository struct {
	db *sql.DB
}

// NewPostgresIngestionRepository creates a new PostgreSQL ingestion repository.
func NewPostgresIngestionRepository(db *sql.DB) *PostgresIngestionRepository {
	return &PostgresIngestionRepository{db: db}
}

// Insert stores a new ingestion.
func (r *PostgresIngestionRepository) Insert(ctx context.Context, ingestion models.Ingestion) error {
	query := `
		INSERT INTO ingestions (
			id, source_id, content, content_hash, word_count, scraped_at,
			extraction_method, status, processed, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		ingestion.ID,
		ingestion.SourceID,
		ingestion.Content,
		ingestion.ContentHash,
		ingestion.WordCount,
		ingestion.ScrapedAt,
		ingestion.ExtractionMethod,
		ingestion.Status,
		ingestion.Processed,
		nullIfEmpty(ingestion.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingestion: %w", err)
	}
	return nil
}

// ExistsByHash reports whether the (source, hash) pair is already stored.
func (r *PostgresIngestionRepository) ExistsByHash(ctx context.Context, sourceID, contentHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM ingestions WHERE source_id = $1 AND content_hash = $2)",
		sourceID, contentHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ingestion existence: %w", err)
	}
	return exists, nil
}

// ListUnprocessed retrieves unprocessed ingestions for a project scraped
// since the cutoff, newest first.
func (r *PostgresIngestionRepository) ListUnprocessed(ctx context.Context, projectID string, since time.Time, limit int) ([]models.Ingestion, error) {
	query := `
		SELECT i.id, i.source_id, i.content, i.content_hash, i.word_count,
		       i.scraped_at, i.extraction_method, i.status, i.processed,
		       COALESCE(i.error_message, '')
		FROM ingestions i
		JOIN sources s ON s.id = i.source_id
		WHERE s.project_id = $1 AND i.processed = false AND i.scraped_at >= $2
		ORDER BY i.scraped_at DESC
		LIMIT $3
	`
	return r.list(ctx, query, projectID, since, limit)
}

// ListRecent retrieves ingestions regardless of processed state; momentum
// analysis needs full context, not just new material.
func (r *PostgresIngestionRepository) ListRecent(ctx context.Context, projectID string, since time.Time, limit int) ([]models.Ingestion, error) {
	query := `
		SELECT i.id, i.source_id, i.content, i.content_hash, i.word_count,
		       i.scraped_at, i.extraction_method, i.status, i.processed,
		       COALESCE(i.error_message, '')
		FROM ingestions i
		JOIN sources s ON s.id = i.source_id
		WHERE s.project_id = $1 AND i.scraped_at >= $2
		ORDER BY i.scraped_at DESC
		LIMIT $3
	`
	return r.list(ctx, query, projectID, since, limit)
}

func (r *PostgresIngestionRepository) list(ctx context.Context, query, projectID string, since time.Time, limit int) ([]models.Ingestion, error) {
	rows, err := r.db.QueryContext(ctx, query, projectID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingestions: %w", err)
	}
	defer rows.Close()

	var ingestions []models.Ingestion
	for rows.Next() {
		var ing models.Ingestion
		if err := rows.Scan(
			&ing.ID,
			&ing.SourceID,
			&ing.Content,
			&ing.ContentHash,
			&ing.WordCount,
			&ing.ScrapedAt,
			&ing.ExtractionMethod,
			&ing.Status,
			&ing.Processed,
			&ing.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion: %w", err)
		}
		ingestions = append(ingestions, ing)
	}

	return ingestions, rows.Err()
}

// MarkProcessed flips processed and sets the analysis status for the ids.
func (r *PostgresIngestionRepository) MarkProcessed(ctx context.Context, ids []string, status models.IngestionStatus) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		"UPDATE ingestions SET processed = true, status = $2 WHERE id = ANY($1)",
		pq.Array(ids), status)
	if err != nil {
		return fmt.Errorf("failed to mark ingestions processed: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
