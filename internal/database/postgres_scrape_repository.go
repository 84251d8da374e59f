package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/internal/models"
)

// PostgresScrapeLogRepository implements ScrapeLogRepository using PostgreSQL.
type PostgresScrapeLogRepository struct {
	db *sql.DB
}

// NewPostgresScrapeLogRepository creates a new PostgreSQL scrape log repository.
func NewPostgresScrapeLogRepository(db *sql.DB) *PostgresScrapeLogRepository {
	return &PostgresScrapeLogRepository{db: db}
}

// Create inserts a log row in running state and returns its id.
func (r *PostgresScrapeLogRepository) Create(ctx context.Context, sourceID string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scrape_logs (id, source_id, status, started_at)
		VALUES ($1, $2, $3, NOW())
	`, id, sourceID, models.ScrapeStatusRunning)
	if err != nil {
		return "", fmt.Errorf("failed to create scrape log: %w", err)
	}
	return id, nil
}

// Finish transitions the log to a terminal state, always recording execution
// time. Called from the deferred cleanup path of every scrape attempt.
func (r *PostgresScrapeLogRepository) Finish(ctx context.Context, id string, status models.ScrapeStatus, itemsFound, itemsProcessed int, errorMessage string, executionTimeMs int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scrape_logs
		SET status = $2, completed_at = NOW(), items_found = $3,
		    items_processed = $4, error_message = $5, execution_time_ms = $6
		WHERE id = $1
	`, id, status, itemsFound, itemsProcessed, nullIfEmpty(errorMessage), executionTimeMs)
	if err != nil {
		return fmt.Errorf("failed to finish scrape log: %w", err)
	}
	return nil
}

// PostgresScrapeLockRepository implements ScrapeLockRepository on a dedicated
// scrape_locks table. The primary key on project_id plus the expiry-guarded
// upsert makes acquisition a single atomic statement: at most one live lock
// per project can exist.
type PostgresScrapeLockRepository struct {
	db *sql.DB
}

// NewPostgresScrapeLockRepository creates a new PostgreSQL scrape lock repository.
func NewPostgresScrapeLockRepository(db *sql.DB) *PostgresScrapeLockRepository {
	return &PostgresScrapeLockRepository{db: db}
}

// Acquire takes the project lock. The upsert only replaces an existing row
// when it has expired; zero rows affected means a live lock is held.
func (r *PostgresScrapeLockRepository) Acquire(ctx context.Context, projectID, lockedBy string, ttl time.Duration) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO scrape_locks (project_id, locked_by, locked_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id) DO UPDATE
		SET locked_by = EXCLUDED.locked_by,
		    locked_at = EXCLUDED.locked_at,
		    expires_at = EXCLUDED.expires_at
		WHERE scrape_locks.expires_at <= EXCLUDED.locked_at
	`, projectID, lockedBy, now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("failed to acquire scrape lock: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read lock acquisition result: %w", err)
	}
	if n == 0 {
		return ErrLockHeld
	}
	return nil
}

// Release drops the lock if still held by lockedBy. Releasing a lock someone
// else has since taken over (after our expiry) is a no-op, not an error.
func (r *PostgresScrapeLockRepository) Release(ctx context.Context, projectID, lockedBy string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM scrape_locks WHERE project_id = $1 AND locked_by = $2",
		projectID, lockedBy)
	if err != nil {
		return fmt.Errorf("failed to release scrape lock: %w", err)
	}
	return nil
}

// Get retrieves the current lock row.
func (r *PostgresScrapeLockRepository) Get(ctx context.Context, projectID string) (*models.ScrapeLock, error) {
	var lock models.ScrapeLock
	err := r.db.QueryRowContext(ctx, `
		SELECT project_id, locked_by, locked_at, expires_at
		FROM scrape_locks
		WHERE project_id = $1
	`, projectID).Scan(&lock.ProjectID, &lock.LockedBy, &lock.LockedAt, &lock.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scrape lock: %w", err)
	}
	return &lock, nil
}
