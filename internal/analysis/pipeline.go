package analysis

import (
	"context"
	"strings"

	"github.com/driftwatch/driftwatch/internal/models"
)

// RunPipeline executes detection then momentum for a project with
// partial-success semantics: momentum always runs, even when detection
// failed, because open signals deserve re-evaluation regardless of whether
// the newest batch could be analyzed. The combined error reflects every
// stage that failed.
func (e *Engine) RunPipeline(ctx context.Context, projectID string) (models.PipelineResult, error) {
	var errs []string

	detection, err := e.DetectSignals(ctx, projectID, 0)
	if err != nil {
		errs = append(errs, "detection: "+err.Error())
	}

	momentum, err := e.AnalyzeMomentum(ctx, projectID, 0)
	if err != nil {
		errs = append(errs, "momentum: "+err.Error())
	}

	result := models.PipelineResult{
		Detection: detection,
		Momentum:  momentum,
	}
	result.TokenUsage.Add(detection.TokenUsage)
	result.TokenUsage.Add(momentum.TokenUsage)

	if len(errs) > 0 {
		result.Error = strings.Join(errs, "; ")
		return result, nil
	}
	return result, nil
}
