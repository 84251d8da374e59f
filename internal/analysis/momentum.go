package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/usage"
)

// AnalyzeMomentum re-evaluates open signals against recent content,
// processed included, since momentum is about trajectory rather than
// novelty. Signals younger than the minimum age are structurally ineligible
// and reported unchanged. An empty eligible set or empty content window is
// a clean zero-update success without a model call.
func (e *Engine) AnalyzeMomentum(ctx context.Context, projectID string, window time.Duration) (models.MomentumResult, error) {
	if window <= 0 {
		window = e.cfg.MomentumWindow
	}
	since := time.Now().Add(-window)
	now := time.Now()

	open, err := e.signals.ListOpenByProject(ctx, projectID)
	if err != nil {
		return models.MomentumResult{}, fmt.Errorf("listing open signals: %w", err)
	}

	var eligible []models.Signal
	for _, sig := range open {
		if sig.EligibleForMomentum(now, e.cfg.MinSignalAge) {
			eligible = append(eligible, sig)
		}
	}
	tooYoung := len(open) - len(eligible)

	recent, err := e.ingestions.ListRecent(ctx, projectID, since, e.cfg.MaxIngestions)
	if err != nil {
		return models.MomentumResult{}, fmt.Errorf("listing recent ingestions: %w", err)
	}

	if len(eligible) == 0 || len(recent) == 0 {
		e.logger.Debug("nothing to analyze for momentum",
			"project_id", projectID,
			"eligible_signals", len(eligible),
			"recent_ingestions", len(recent),
		)
		return models.MomentumResult{SignalsUnchanged: len(open)}, nil
	}

	project, err := e.projects.GetByID(ctx, projectID)
	if err != nil {
		return models.MomentumResult{}, fmt.Errorf("loading project: %w", err)
	}

	prompt := buildMomentumPrompt(project, eligible, recent, e.cfg.MaxContentLength)
	raw, tokens, err := e.complete(ctx, usage.ActionMomentumAnalysis, momentumSystemPrompt, prompt)
	if err != nil {
		return models.MomentumResult{TokenUsage: tokens, Error: err.Error()}, fmt.Errorf("momentum model call: %w", err)
	}

	parsed, err := parseMomentumResponse(raw)
	if err == nil {
		err = validateMomentumPartition(parsed, eligible)
	}
	if err != nil {
		return models.MomentumResult{
			SignalsAnalyzed: len(eligible),
			TokenUsage:      tokens,
			Error:           err.Error(),
		}, err
	}

	eligibleByID := make(map[string]models.Signal, len(eligible))
	for _, sig := range eligible {
		eligibleByID[sig.ID] = sig
	}
	validIngestions := make(map[string]bool, len(recent))
	for _, ing := range recent {
		validIngestions[ing.ID] = true
	}

	result := models.MomentumResult{
		SignalsAnalyzed: len(eligible),
		TokenUsage:      tokens,
		AnalysisNotes:   parsed.Notes,
	}

	for _, upd := range parsed.Updates {
		sig, ok := eligibleByID[upd.SignalID]
		if !ok {
			e.logger.Warn("momentum update references unknown signal",
				"project_id", projectID,
				"signal_id", upd.SignalID,
			)
			continue
		}

		supporting := keepKnown(upd.IngestionIDs, validIngestions)
		if _, err := e.linker.Link(ctx, sig.ID, supporting, models.ReferenceMomentum); err != nil {
			e.logger.Error("failed to link momentum evidence", "signal_id", sig.ID, "error", err)
		}
		evidenceCount, err := e.linker.Count(ctx, sig.ID)
		if err != nil {
			e.logger.Error("failed to count evidence", "signal_id", sig.ID, "error", err)
		}

		entry := models.MomentumHistoryEntry{
			SignalID:       sig.ID,
			PreviousStatus: sig.Status,
			NewStatus:      models.SignalStatus(upd.NewStatus),
			PrevMomentum:   sig.Momentum,
			NewMomentum:    models.SignalMomentum(upd.NewMomentum),
			PrevRiskLevel:  sig.RiskLevel,
			NewRiskLevel:   models.RiskLevel(upd.NewRiskLevel),
			Reason:         upd.Reason,
			IngestionIDs:   supporting,
			EvidenceCount:  evidenceCount,
		}

		// One bad update must not lose the rest of the batch.
		if err := e.signals.ApplyMomentumUpdate(ctx, sig.ID, entry); err != nil {
			e.logger.Error("failed to apply momentum update", "signal_id", sig.ID, "error", err)
			continue
		}

		sig.Status = entry.NewStatus
		sig.Momentum = entry.NewMomentum
		sig.RiskLevel = entry.NewRiskLevel
		result.UpdatedSignals = append(result.UpdatedSignals, sig)
		result.SignalsUpdated++
	}

	result.SignalsUnchanged = len(eligible) - result.SignalsUpdated + tooYoung

	e.recordUsage(ctx, projectID, usage.ActionMomentumAnalysis, tokens, map[string]string{
		"signals_analyzed": fmt.Sprint(result.SignalsAnalyzed),
		"signals_updated":  fmt.Sprint(result.SignalsUpdated),
	})

	if e.observer != nil {
		e.observer.ObserveMomentum(result)
	}
	e.logger.Info("momentum analysis complete",
		"project_id", projectID,
		"signals_analyzed", result.SignalsAnalyzed,
		"signals_updated", result.SignalsUpdated,
		"signals_unchanged", result.SignalsUnchanged,
		"total_tokens", tokens.TotalTokens,
	)
	return result, nil
}
