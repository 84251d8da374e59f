package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/evidence"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/usage"
)

// Engine runs both analysis stages against a project. All model I/O goes
// through the ModelClient so the engine itself is deterministic under test.
type Engine struct {
	projects   database.ProjectRepository
	ingestions database.IngestionRepository
	signals    database.SignalRepository
	linker     *evidence.Linker
	ledger     *usage.Ledger
	client     ModelClient
	cfg        config.AnalysisConfig
	logger     *slog.Logger
	observer   Observer
}

// NewEngine creates an analysis engine.
func NewEngine(
	projects database.ProjectRepository,
	ingestions database.IngestionRepository,
	signals database.SignalRepository,
	linker *evidence.Linker,
	ledger *usage.Ledger,
	client ModelClient,
	cfg config.AnalysisConfig,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		projects:   projects,
		ingestions: ingestions,
		signals:    signals,
		linker:     linker,
		ledger:     ledger,
		client:     client,
		cfg:        cfg,
		logger:     logger,
	}
}

// SetObserver attaches a stage observer. Nil disables observation.
func (e *Engine) SetObserver(obs Observer) {
	e.observer = obs
}

func (e *Engine) complete(ctx context.Context, action, systemPrompt, userPrompt string) (string, models.TokenUsage, error) {
	start := time.Now()
	raw, tokens, err := e.client.Complete(ctx, systemPrompt, userPrompt)
	if e.observer != nil {
		e.observer.ObserveModelCall(action, time.Since(start), tokens, err)
	}
	return raw, tokens, err
}

// DetectSignals analyzes unprocessed ingestions from the window and creates
// signals for emerging narratives. No unprocessed content means a clean
// zero-result without a model call. Every ingestion sent to the model is
// marked processed afterwards, whether or not the analysis succeeded; a
// batch that failed analysis is not silently retried forever.
func (e *Engine) DetectSignals(ctx context.Context, projectID string, window time.Duration) (models.DetectionResult, error) {
	if window <= 0 {
		window = e.cfg.DetectionWindow
	}
	since := time.Now().Add(-window)

	candidates, err := e.ingestions.ListUnprocessed(ctx, projectID, since, e.cfg.MaxIngestions)
	if err != nil {
		return models.DetectionResult{}, fmt.Errorf("listing unprocessed ingestions: %w", err)
	}
	if len(candidates) == 0 {
		e.logger.Debug("no unprocessed ingestions, skipping detection", "project_id", projectID)
		return models.DetectionResult{}, nil
	}

	project, err := e.projects.GetByID(ctx, projectID)
	if err != nil {
		return models.DetectionResult{}, fmt.Errorf("loading project: %w", err)
	}

	prompt := buildDetectionPrompt(project, candidates, e.cfg.MaxContentLength)
	raw, tokens, err := e.complete(ctx, usage.ActionSignalDetection, detectionSystemPrompt, prompt)
	if err != nil {
		e.failBatch(ctx, projectID, candidates, tokens)
		return models.DetectionResult{TokenUsage: tokens, Error: err.Error()}, fmt.Errorf("detection model call: %w", err)
	}

	parsed, err := parseDetectionResponse(raw)
	if err != nil {
		e.failBatch(ctx, projectID, candidates, tokens)
		return models.DetectionResult{
			IngestionsAnalyzed: len(candidates),
			TokenUsage:         tokens,
			Error:              err.Error(),
		}, err
	}

	result := models.DetectionResult{
		IngestionsAnalyzed: len(candidates),
		TokenUsage:         tokens,
		AnalysisNotes:      parsed.Notes,
	}

	validIDs := make(map[string]bool, len(candidates))
	for _, ing := range candidates {
		validIDs[ing.ID] = true
	}

	now := time.Now()
	for _, cand := range parsed.Signals {
		signal := models.Signal{
			ID:         uuid.NewString(),
			ProjectID:  projectID,
			Headline:   models.TruncateHeadline(cand.Headline),
			Summary:    cand.Summary,
			KeyPoints:  cand.KeyPoints,
			Status:     models.SignalStatusNew,
			Momentum:   models.MomentumMedium,
			RiskLevel:  riskLevelOrDefault(cand.RiskLevel),
			Tags:       cand.Tags,
			DetectedAt: now,
			UpdatedAt:  now,
		}

		// Failures here are isolated: one bad signal must not lose the rest
		// of the batch.
		if err := e.signals.Insert(ctx, signal); err != nil {
			e.logger.Error("failed to insert detected signal",
				"project_id", projectID,
				"headline", signal.Headline,
				"error", err,
			)
			continue
		}

		supporting := keepKnown(cand.IngestionIDs, validIDs)
		if _, err := e.linker.Link(ctx, signal.ID, supporting, models.ReferenceDetected); err != nil {
			e.logger.Error("failed to link detection evidence",
				"signal_id", signal.ID,
				"error", err,
			)
		}

		result.Signals = append(result.Signals, signal)
		result.SignalsDetected++
	}

	if err := e.markBatch(ctx, candidates, models.IngestionStatusAnalyzed); err != nil {
		e.logger.Error("failed to mark ingestions analyzed", "project_id", projectID, "error", err)
	}
	e.recordUsage(ctx, projectID, usage.ActionSignalDetection, tokens, map[string]string{
		"ingestions_analyzed": fmt.Sprint(len(candidates)),
		"signals_detected":    fmt.Sprint(result.SignalsDetected),
	})

	if e.observer != nil {
		e.observer.ObserveDetection(result)
	}
	e.logger.Info("signal detection complete",
		"project_id", projectID,
		"ingestions_analyzed", result.IngestionsAnalyzed,
		"signals_detected", result.SignalsDetected,
		"total_tokens", tokens.TotalTokens,
	)
	return result, nil
}

// failBatch marks a batch whose analysis failed and records whatever token
// usage the attempt consumed.
func (e *Engine) failBatch(ctx context.Context, projectID string, batch []models.Ingestion, tokens models.TokenUsage) {
	if err := e.markBatch(ctx, batch, models.IngestionStatusAnalysisFailed); err != nil {
		e.logger.Error("failed to mark ingestions analysis_failed", "project_id", projectID, "error", err)
	}
	if tokens.TotalTokens > 0 {
		e.recordUsage(ctx, projectID, usage.ActionSignalDetection, tokens, map[string]string{"outcome": "failed"})
	}
}

func (e *Engine) markBatch(ctx context.Context, batch []models.Ingestion, status models.IngestionStatus) error {
	ids := make([]string, len(batch))
	for i, ing := range batch {
		ids[i] = ing.ID
	}
	return e.ingestions.MarkProcessed(ctx, ids, status)
}

func (e *Engine) recordUsage(ctx context.Context, projectID, action string, tokens models.TokenUsage, metadata map[string]string) {
	if err := e.ledger.Record(ctx, projectID, action, e.client.Model(), tokens, metadata); err != nil {
		e.logger.Error("failed to record usage", "project_id", projectID, "action", action, "error", err)
	}
}

func riskLevelOrDefault(v string) models.RiskLevel {
	if validRiskLevel(v) {
		return models.RiskLevel(v)
	}
	return models.RiskMonitor
}

// keepKnown filters ids down to those present in the candidate set; the
// model occasionally invents ids and those must never become evidence.
func keepKnown(ids []string, known map[string]bool) []string {
	var out []string
	for _, id := range ids {
		if known[id] {
			out = append(out, id)
		}
	}
	return out
}
