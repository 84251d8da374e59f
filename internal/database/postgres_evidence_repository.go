package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/driftwatch/driftwatch/internal/models"
)

// PostgresEvidenceRepository implements EvidenceRepository using PostgreSQL.
type PostgresEvidenceRepository struct {
	db *sql.DB
}

// NewPostgresEvidenceRepository creates a new PostgreSQL evidence repository.
func NewPostgresEvidenceRepository(db *sql.DB) *PostgresEvidenceRepository {
	return &PostgresEvidenceRepository{db: db}
}

// LinkBatch inserts evidence links with conflict-ignore semantics on the
// (signal_id, ingestion_id) unique pair, returning how many rows were
// actually inserted. Repeating the same request is a no-op.
func (r *PostgresEvidenceRepository) LinkBatch(ctx context.Context, signalID string, ingestionIDs []string, refType models.ReferenceType) (int, error) {
	if len(ingestionIDs) == 0 {
		return 0, nil
	}

	inserted := 0
	for _, ingestionID := range ingestionIDs {
		if ingestionID == "" {
			continue
		}
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO evidence_links (signal_id, ingestion_id, reference_type, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (signal_id, ingestion_id) DO NOTHING
		`, signalID, ingestionID, refType)
		if err != nil {
			return inserted, fmt.Errorf("failed to link evidence %s -> %s: %w", signalID, ingestionID, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}

	return inserted, nil
}

// CountForSignal returns the number of evidence rows for a signal.
func (r *PostgresEvidenceRepository) CountForSignal(ctx context.Context, signalID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM evidence_links WHERE signal_id = $1", signalID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count evidence: %w", err)
	}
	return count, nil
}
