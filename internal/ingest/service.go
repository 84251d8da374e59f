// Package ingest persists extracted content with content-hash deduplication
// and records the lifecycle of every scrape attempt.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/extraction"
	"github.com/driftwatch/driftwatch/internal/models"
)

// SaveResult reports what happened to one piece of extracted content.
type SaveResult struct {
	IngestionID string
	Duplicate   bool
	WordCount   int
}

// Service writes ingestions and scrape logs. Every persisted ingestion
// enters in pending_analysis; the analysis stage owns later transitions.
type Service struct {
	ingestions database.IngestionRepository
	sources    database.SourceRepository
	scrapeLogs database.ScrapeLogRepository
	chain      *extraction.Chain
	logger     *slog.Logger
}

// NewService creates an ingestion service.
func NewService(
	ingestions database.IngestionRepository,
	sources database.SourceRepository,
	scrapeLogs database.ScrapeLogRepository,
	chain *extraction.Chain,
	logger *slog.Logger,
) *Service {
	return &Service{
		ingestions: ingestions,
		sources:    sources,
		scrapeLogs: scrapeLogs,
		chain:      chain,
		logger:     logger,
	}
}

// SaveIngestion persists extracted content for a source. A duplicate
// (source, content-hash) pair short-circuits: no row is written, but the
// source's freshness is still updated since it was successfully checked and
// just had nothing new.
func (s *Service) SaveIngestion(ctx context.Context, source models.Source, result *extraction.Result) (SaveResult, error) {
	hash := HashContent(result.Content)

	exists, err := s.ingestions.ExistsByHash(ctx, source.ID, hash)
	if err != nil {
		return SaveResult{}, fmt.Errorf("checking content hash: %w", err)
	}

	now := time.Now()
	if exists {
		if err := s.sources.UpdateLastFetch(ctx, source.ID, now); err != nil {
			return SaveResult{}, fmt.Errorf("updating source freshness: %w", err)
		}
		s.logger.Debug("duplicate content skipped",
			"source_id", source.ID,
			"content_hash", hash,
		)
		return SaveResult{Duplicate: true, WordCount: result.WordCount}, nil
	}

	ingestion := models.Ingestion{
		ID:               uuid.NewString(),
		SourceID:         source.ID,
		Content:          result.Content,
		ContentHash:      hash,
		WordCount:        result.WordCount,
		ScrapedAt:        now,
		ExtractionMethod: result.Method,
		Status:           models.IngestionStatusPendingAnalysis,
		Processed:        false,
	}

	if err := s.ingestions.Insert(ctx, ingestion); err != nil {
		return SaveResult{}, fmt.Errorf("inserting ingestion: %w", err)
	}
	if err := s.sources.UpdateLastFetch(ctx, source.ID, now); err != nil {
		return SaveResult{}, fmt.Errorf("updating source freshness: %w", err)
	}

	s.logger.Info("ingestion saved",
		"source_id", source.ID,
		"ingestion_id", ingestion.ID,
		"method", result.Method,
		"word_count", result.WordCount,
	)
	return SaveResult{IngestionID: ingestion.ID, WordCount: result.WordCount}, nil
}

// ScrapeSource runs the full scrape of a single source: open a scrape log,
// extract through the tier chain, persist the result, and close the log.
// The log always reaches a terminal state, whatever path the scrape takes.
func (s *Service) ScrapeSource(ctx context.Context, source models.Source) (saved SaveResult, err error) {
	logID, logErr := s.scrapeLogs.Create(ctx, source.ID)
	if logErr != nil {
		return SaveResult{}, fmt.Errorf("creating scrape log: %w", logErr)
	}
	start := time.Now()

	var itemsFound, itemsProcessed int
	defer func() {
		status := models.ScrapeStatusCompleted
		errMsg := ""
		if err != nil {
			status = models.ScrapeStatusFailed
			errMsg = err.Error()
		}
		elapsed := time.Since(start).Milliseconds()
		if finErr := s.scrapeLogs.Finish(ctx, logID, status, itemsFound, itemsProcessed, errMsg, elapsed); finErr != nil {
			s.logger.Error("failed to finish scrape log",
				"scrape_log_id", logID,
				"error", finErr,
			)
		}
	}()

	result, err := s.chain.Extract(ctx, extraction.Target{URL: source.URL, Platform: source.Platform})
	if err != nil {
		return SaveResult{}, fmt.Errorf("extracting %s: %w", source.URL, err)
	}
	itemsFound = result.ItemsFound
	if itemsFound == 0 {
		itemsFound = 1
	}

	saved, err = s.SaveIngestion(ctx, source, result)
	if err != nil {
		return SaveResult{}, err
	}
	if !saved.Duplicate {
		itemsProcessed = itemsFound
	}
	return saved, nil
}
