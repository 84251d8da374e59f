// Package evidence maintains the links between signals and the ingestions
// that justify them.
package evidence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/models"
)

// Linker records signal-to-ingestion evidence. Linking is idempotent: a
// (signal, ingestion) pair is stored at most once however many times the
// pipeline asserts it.
type Linker struct {
	repo   database.EvidenceRepository
	logger *slog.Logger
}

// NewLinker creates an evidence linker.
func NewLinker(repo database.EvidenceRepository, logger *slog.Logger) *Linker {
	return &Linker{repo: repo, logger: logger}
}

// Link associates the ingestions with a signal under the given reference
// type. Empty ids are dropped rather than rejected; the model sometimes
// echoes back blank entries. Returns the number of links actually created.
func (l *Linker) Link(ctx context.Context, signalID string, ingestionIDs []string, refType models.ReferenceType) (int, error) {
	var filtered []string
	for _, id := range ingestionIDs {
		if id != "" {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == 0 {
		return 0, nil
	}

	created, err := l.repo.LinkBatch(ctx, signalID, filtered, refType)
	if err != nil {
		return 0, fmt.Errorf("linking evidence for signal %s: %w", signalID, err)
	}
	if created < len(filtered) {
		l.logger.Debug("some evidence links already existed",
			"signal_id", signalID,
			"requested", len(filtered),
			"created", created,
		)
	}
	return created, nil
}

// Count returns the number of evidence rows recorded for a signal.
func (l *Linker) Count(ctx context.Context, signalID string) (int, error) {
	return l.repo.CountForSignal(ctx, signalID)
}
