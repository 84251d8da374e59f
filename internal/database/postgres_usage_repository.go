package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
)

// PostgresUsageRepository implements UsageRepository using PostgreSQL.
type PostgresUsageRepository struct {
	db *sql.DB
}

// NewPostgresUsageRepository creates a new PostgreSQL usage repository.
func NewPostgresUsageRepository(db *sql.DB) *PostgresUsageRepository {
	return &PostgresUsageRepository{db: db}
}

// Insert appends one immutable usage row.
func (r *PostgresUsageRepository) Insert(ctx context.Context, log models.UsageLog) error {
	metadataJSON, err := json.Marshal(log.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal usage metadata: %w", err)
	}

	query := `
		INSERT INTO usage_logs (
			id, project_id, action_type, model, prompt_tokens,
			completion_tokens, estimated_cost, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID,
		log.ProjectID,
		log.ActionType,
		log.Model,
		log.PromptTokens,
		log.CompletionTokens,
		log.EstimatedCost,
		metadataJSON,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

// TotalCostSince aggregates estimated cost for a project. Write paths never
// aggregate; this is the read-side query.
func (r *PostgresUsageRepository) TotalCostSince(ctx context.Context, projectID string, since time.Time) (float64, error) {
	var total sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT SUM(estimated_cost)
		FROM usage_logs
		WHERE project_id = $1 AND created_at >= $2
	`, projectID, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate usage cost: %w", err)
	}
	return total.Float64, nil
}
