package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
)

// PostgresSourceRepository implements SourceRepository using PostgreSQL.
type PostgresSourceRepository struct {
	db *sql.DB
}

// NewPostgresSourceRepository creates a new PostgreSQL source repository.
func NewPostgresSourceRepository(db *sql.DB) *PostgresSourceRepository {
	return &PostgresSourceRepository{db: db}
}

// GetByID retrieves a source.
func (r *PostgresSourceRepository) GetByID(ctx context.Context, id string) (*models.Source, error) {
	query := `
		SELECT id, project_id, url, display_name, platform, is_active,
		       last_fetch_at, created_at
		FROM sources
		WHERE id = $1
	`

	var s models.Source
	var displayName sql.NullString
	var lastFetch sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.ProjectID,
		&s.URL,
		&displayName,
		&s.Platform,
		&s.IsActive,
		&lastFetch,
		&s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}

	s.DisplayName = displayName.String
	if lastFetch.Valid {
		t := lastFetch.Time
		s.LastFetchAt = &t
	}

	return &s, nil
}

// ListActiveByProject retrieves active sources for a project, least recently
// fetched first so stale sources get priority under the per-project cap.
func (r *PostgresSourceRepository) ListActiveByProject(ctx context.Context, projectID string, limit int) ([]models.Source, error) {
	query := `
		SELECT id, project_id, url, display_name, platform, is_active,
		       last_fetch_at, created_at
		FROM sources
		WHERE project_id = $1 AND is_active = true
		ORDER BY last_fetch_at ASC NULLS FIRST
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		var s models.Source
		var displayName sql.NullString
		var lastFetch sql.NullTime

		if err := rows.Scan(
			&s.ID,
			&s.ProjectID,
			&s.URL,
			&displayName,
			&s.Platform,
			&s.IsActive,
			&lastFetch,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}

		s.DisplayName = displayName.String
		if lastFetch.Valid {
			t := lastFetch.Time
			s.LastFetchAt = &t
		}
		sources = append(sources, s)
	}

	return sources, rows.Err()
}

// UpdateLastFetch records source freshness.
func (r *PostgresSourceRepository) UpdateLastFetch(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE sources SET last_fetch_at = $2 WHERE id = $1", id, at)
	if err != nil {
		return fmt.Errorf("failed to update last fetch: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
