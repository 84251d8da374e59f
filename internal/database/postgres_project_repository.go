package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/driftwatch/driftwatch/internal/models"
)

// PostgresProjectRepository implements ProjectRepository using PostgreSQL.
type PostgresProjectRepository struct {
	db *sql.DB
}

// NewPostgresProjectRepository creates a new PostgreSQL project repository.
func NewPostgresProjectRepository(db *sql.DB) *PostgresProjectRepository {
	return &PostgresProjectRepository{db: db}
}

// GetByID retrieves a project.
func (r *PostgresProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `
		SELECT id, name, detection_instructions, risk_criteria,
		       refresh_interval_minutes, last_refresh_at, is_active, created_at
		FROM projects
		WHERE id = $1
	`

	var p models.Project
	var instructions sql.NullString
	var lastRefresh sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&instructions,
		pq.Array(&p.RiskCriteria),
		&p.RefreshIntervalMins,
		&lastRefresh,
		&p.IsActive,
		&p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}

	p.DetectionInstructions = instructions.String
	if lastRefresh.Valid {
		t := lastRefresh.Time
		p.LastRefreshAt = &t
	}

	return &p, nil
}

// ListDue retrieves active projects whose configured interval has elapsed,
// oldest refresh first. A never-refreshed project is always due.
func (r *PostgresProjectRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Project, error) {
	query := `
		SELECT id, name, detection_instructions, risk_criteria,
		       refresh_interval_minutes, last_refresh_at, is_active, created_at
		FROM projects
		WHERE is_active = true
		  AND (last_refresh_at IS NULL
		       OR last_refresh_at <= $1 - (refresh_interval_minutes * INTERVAL '1 minute'))
		ORDER BY last_refresh_at ASC NULLS FIRST
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		var instructions sql.NullString
		var lastRefresh sql.NullTime

		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&instructions,
			pq.Array(&p.RiskCriteria),
			&p.RefreshIntervalMins,
			&lastRefresh,
			&p.IsActive,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}

		p.DetectionInstructions = instructions.String
		if lastRefresh.Valid {
			t := lastRefresh.Time
			p.LastRefreshAt = &t
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

// UpdateLastRefresh records refresh completion.
func (r *PostgresProjectRepository) UpdateLastRefresh(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE projects SET last_refresh_at = $2 WHERE id = $1", id, at)
	if err != nil {
		return fmt.Errorf("failed to update last refresh: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
