// Package usage records AI token consumption and derived cost per project.
// Rows are append-only; cost reporting is read-side aggregation.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/models"
)

// Action types recorded by the pipeline.
const (
	ActionSignalDetection  = "signal_detection"
	ActionMomentumAnalysis = "momentum_analysis"
)

// Ledger appends usage rows with cost computed at write time, so the rate
// in effect when the call was made is frozen into the row.
type Ledger struct {
	repo   database.UsageRepository
	logger *slog.Logger
}

// NewLedger creates a usage ledger.
func NewLedger(repo database.UsageRepository, logger *slog.Logger) *Ledger {
	return &Ledger{repo: repo, logger: logger}
}

// Record appends one usage row for an AI invocation.
func (l *Ledger) Record(ctx context.Context, projectID, actionType, model string, tokens models.TokenUsage, metadata map[string]string) error {
	log := models.UsageLog{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		ActionType:       actionType,
		Model:            model,
		PromptTokens:     tokens.PromptTokens,
		CompletionTokens: tokens.CompletionTokens,
		EstimatedCost:    EstimateCost(model, tokens.PromptTokens, tokens.CompletionTokens),
		Metadata:         metadata,
		CreatedAt:        time.Now(),
	}

	if err := l.repo.Insert(ctx, log); err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}

	l.logger.Debug("usage recorded",
		"project_id", projectID,
		"action", actionType,
		"model", model,
		"prompt_tokens", tokens.PromptTokens,
		"completion_tokens", tokens.CompletionTokens,
		"estimated_cost", log.EstimatedCost,
	)
	return nil
}

// TotalCostSince aggregates estimated cost for a project over a window.
func (l *Ledger) TotalCostSince(ctx context.Context, projectID string, since time.Time) (float64, error) {
	return l.repo.TotalCostSince(ctx, projectID, since)
}

// EstimateCost converts token counts into USD using per-model rates.
// Rough estimates per 1M tokens; unknown models fall back to a mid-tier
// rate rather than zero so costs are never silently undercounted.
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	var inputPer1M, outputPer1M float64

	switch model {
	case "gpt-4o":
		inputPer1M = 2.50
		outputPer1M = 10.00
	case "gpt-4o-mini":
		inputPer1M = 0.15
		outputPer1M = 0.60
	case "gpt-4-turbo", "gpt-4-turbo-preview":
		inputPer1M = 10.00
		outputPer1M = 30.00
	case "gpt-3.5-turbo":
		inputPer1M = 0.50
		outputPer1M = 1.50
	default:
		if strings.HasPrefix(model, "claude-") {
			inputPer1M = 3.00
			outputPer1M = 15.00
		} else {
			inputPer1M = 5.00
			outputPer1M = 15.00
		}
	}

	inputCost := (float64(promptTokens) / 1_000_000) * inputPer1M
	outputCost := (float64(completionTokens) / 1_000_000) * outputPer1M
	return inputCost + outputCost
}
