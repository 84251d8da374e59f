package database

import (
	"context"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
)

// ProjectRepository accesses projects and their refresh bookkeeping.
type ProjectRepository interface {
	// GetByID retrieves a project.
	GetByID(ctx context.Context, id string) (*models.Project, error)

	// ListDue retrieves active projects whose refresh interval has elapsed,
	// oldest refresh first, capped at limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Project, error)

	// UpdateLastRefresh records refresh completion.
	UpdateLastRefresh(ctx context.Context, id string, at time.Time) error
}

// SourceRepository accesses per-project sources.
type SourceRepository interface {
	// GetByID retrieves a source.
	GetByID(ctx context.Context, id string) (*models.Source, error)

	// ListActiveByProject retrieves active sources for a project, capped at limit.
	ListActiveByProject(ctx context.Context, projectID string, limit int) ([]models.Source, error)

	// UpdateLastFetch records source freshness.
	UpdateLastFetch(ctx context.Context, id string, at time.Time) error
}

// IngestionRepository accesses deduplicated scraped content.
type IngestionRepository interface {
	// Insert stores a new ingestion.
	Insert(ctx context.Context, ingestion models.Ingestion) error

	// ExistsByHash reports whether (sourceID, contentHash) is already stored.
	ExistsByHash(ctx context.Context, sourceID, contentHash string) (bool, error)

	// ListUnprocessed retrieves unprocessed ingestions for a project scraped
	// since the cutoff, newest first, capped at limit.
	ListUnprocessed(ctx context.Context, projectID string, since time.Time, limit int) ([]models.Ingestion, error)

	// ListRecent retrieves ingestions for a project scraped since the cutoff
	// regardless of processed state, newest first, capped at limit.
	ListRecent(ctx context.Context, projectID string, since time.Time, limit int) ([]models.Ingestion, error)

	// MarkProcessed flips processed and sets the analysis status for the ids.
	MarkProcessed(ctx context.Context, ids []string, status models.IngestionStatus) error
}

// ScrapeLogRepository appends scrape attempt records.
type ScrapeLogRepository interface {
	// Create inserts the log in running state and returns its id.
	Create(ctx context.Context, sourceID string) (string, error)

	// Finish transitions the log to a terminal state with timing.
	Finish(ctx context.Context, id string, status models.ScrapeStatus, itemsFound, itemsProcessed int, errorMessage string, executionTimeMs int64) error
}

// ScrapeLockRepository coordinates the per-project mutual exclusion.
type ScrapeLockRepository interface {
	// Acquire takes the project lock for lockedBy with the given TTL.
	// Returns ErrLockHeld when a live lock exists.
	Acquire(ctx context.Context, projectID, lockedBy string, ttl time.Duration) error

	// Release drops the lock if still held by lockedBy.
	Release(ctx context.Context, projectID, lockedBy string) error

	// Get retrieves the current lock row, or ErrNotFound.
	Get(ctx context.Context, projectID string) (*models.ScrapeLock, error)
}

// SignalRepository accesses detected signals and their momentum history.
type SignalRepository interface {
	// Insert stores a new signal.
	Insert(ctx context.Context, signal models.Signal) error

	// GetByID retrieves a signal.
	GetByID(ctx context.Context, id string) (*models.Signal, error)

	// ListOpenByProject retrieves non-archived signals for a project.
	ListOpenByProject(ctx context.Context, projectID string) ([]models.Signal, error)

	// ApplyMomentumUpdate writes the new status/momentum/risk and appends the
	// history entry in a single transaction. History rows are never rewritten.
	ApplyMomentumUpdate(ctx context.Context, signalID string, entry models.MomentumHistoryEntry) error

	// ListHistory retrieves a signal's momentum history, oldest first.
	ListHistory(ctx context.Context, signalID string) ([]models.MomentumHistoryEntry, error)
}

// EvidenceRepository links signals to supporting ingestions.
type EvidenceRepository interface {
	// LinkBatch inserts links with conflict-ignore semantics on the
	// (signal_id, ingestion_id) pair. Duplicate links are no-ops.
	LinkBatch(ctx context.Context, signalID string, ingestionIDs []string, refType models.ReferenceType) (int, error)

	// CountForSignal returns the number of evidence rows for a signal.
	CountForSignal(ctx context.Context, signalID string) (int, error)
}

// UsageRepository appends AI usage rows.
type UsageRepository interface {
	// Insert appends one immutable usage row.
	Insert(ctx context.Context, log models.UsageLog) error

	// TotalCostSince aggregates estimated cost for a project (read-side).
	TotalCostSince(ctx context.Context, projectID string, since time.Time) (float64, error)
}
