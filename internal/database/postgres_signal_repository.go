package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/driftwatch/driftwatch/internal/models"
)

// PostgresSignalRepository implements SignalRepository using PostgreSQL.
// Momentum history lives in an append-only child table rather than a JSON
// blob, so state updates and history appends commit in one transaction
// without read-modify-write races.
type PostgresSignalRepository struct {
	db *sql.DB
}

// NewPostgresSignalRepository creates a new PostgreSQL signal repository.
func NewPostgresSignalRepository(db *sql.DB) *PostgresSignalRepository {
	return &PostgresSignalRepository{db: db}
}

// Insert stores a new signal.
func (r *PostgresSignalRepository) Insert(ctx context.Context, signal models.Signal) error {
	query := `
		INSERT INTO signals (
			id, project_id, headline, summary, key_points, status, momentum,
			risk_level, tags, detected_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		signal.ID,
		signal.ProjectID,
		signal.Headline,
		signal.Summary,
		pq.Array(signal.KeyPoints),
		signal.Status,
		signal.Momentum,
		signal.RiskLevel,
		pq.Array(signal.Tags),
		signal.DetectedAt,
		signal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// GetByID retrieves a signal.
func (r *PostgresSignalRepository) GetByID(ctx context.Context, id string) (*models.Signal, error) {
	query := `
		SELECT id, project_id, headline, summary, key_points, status,
		       momentum, risk_level, tags, detected_at, updated_at
		FROM signals
		WHERE id = $1
	`

	var s models.Signal
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.ProjectID,
		&s.Headline,
		&s.Summary,
		pq.Array(&s.KeyPoints),
		&s.Status,
		&s.Momentum,
		&s.RiskLevel,
		pq.Array(&s.Tags),
		&s.DetectedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query signal: %w", err)
	}
	return &s, nil
}

// ListOpenByProject retrieves non-archived signals, oldest detection first.
func (r *PostgresSignalRepository) ListOpenByProject(ctx context.Context, projectID string) ([]models.Signal, error) {
	query := `
		SELECT id, project_id, headline, summary, key_points, status,
		       momentum, risk_level, tags, detected_at, updated_at
		FROM signals
		WHERE project_id = $1 AND status != $2
		ORDER BY detected_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, projectID, models.SignalStatusArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to query open signals: %w", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var s models.Signal
		if err := rows.Scan(
			&s.ID,
			&s.ProjectID,
			&s.Headline,
			&s.Summary,
			pq.Array(&s.KeyPoints),
			&s.Status,
			&s.Momentum,
			&s.RiskLevel,
			pq.Array(&s.Tags),
			&s.DetectedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, s)
	}

	return signals, rows.Err()
}

// ApplyMomentumUpdate writes the new state and appends the history entry
// atomically.
func (r *PostgresSignalRepository) ApplyMomentumUpdate(ctx context.Context, signalID string, entry models.MomentumHistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin momentum update: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE signals
		SET status = $2, momentum = $3, risk_level = $4, updated_at = NOW()
		WHERE id = $1
	`, signalID, entry.NewStatus, entry.NewMomentum, entry.NewRiskLevel)
	if err != nil {
		return fmt.Errorf("failed to update signal state: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	historyID := entry.ID
	if historyID == "" {
		historyID = uuid.NewString()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO momentum_history (
			id, signal_id, previous_status, new_status, previous_momentum,
			new_momentum, previous_risk_level, new_risk_level, reason,
			ingestion_ids, evidence_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`,
		historyID,
		signalID,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.PrevMomentum,
		entry.NewMomentum,
		entry.PrevRiskLevel,
		entry.NewRiskLevel,
		entry.Reason,
		pq.Array(entry.IngestionIDs),
		entry.EvidenceCount,
	)
	if err != nil {
		return fmt.Errorf("failed to append momentum history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit momentum update: %w", err)
	}
	return nil
}

// ListHistory retrieves a signal's momentum history, oldest first.
func (r *PostgresSignalRepository) ListHistory(ctx context.Context, signalID string) ([]models.MomentumHistoryEntry, error) {
	query := `
		SELECT id, signal_id, previous_status, new_status, previous_momentum,
		       new_momentum, previous_risk_level, new_risk_level, reason,
		       ingestion_ids, evidence_count, created_at
		FROM momentum_history
		WHERE signal_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, signalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query momentum history: %w", err)
	}
	defer rows.Close()

	var entries []models.MomentumHistoryEntry
	for rows.Next() {
		var e models.MomentumHistoryEntry
		if err := rows.Scan(
			&e.ID,
			&e.SignalID,
			&e.PreviousStatus,
			&e.NewStatus,
			&e.PrevMomentum,
			&e.NewMomentum,
			&e.PrevRiskLevel,
			&e.NewRiskLevel,
			&e.Reason,
			pq.Array(&e.IngestionIDs),
			&e.EvidenceCount,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan momentum history: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
