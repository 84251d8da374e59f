package analysis

import (
	"fmt"
	"strings"

	"github.com/driftwatch/driftwatch/internal/models"
)

const detectionSystemPrompt = `You are a narrative intelligence analyst. You review freshly scraped content for a monitoring project and identify emerging signals: new narratives, claims, or developments that warrant tracking.

Respond with a single JSON object and nothing else:
{
  "signals": [
    {
      "headline": "short factual headline",
      "summary": "2-4 sentence summary of the signal",
      "key_points": ["point", ...],
      "risk_level": "watch_closely" or "monitor",
      "tags": ["tag", ...],
      "supporting_ingestion_ids": ["id of each content item supporting this signal"]
    }
  ],
  "analysis_notes": "brief notes on the overall picture"
}

Only report genuinely new signals supported by the content provided. An empty signals array is a valid answer. Use only ingestion ids that appear in the input.`

const momentumSystemPrompt = `You are a narrative intelligence analyst tracking previously detected signals. Given each signal's current state and the latest content, judge whether its trajectory has changed.

Respond with a single JSON object and nothing else:
{
  "updates": [
    {
      "signal_id": "id",
      "new_status": "New", "Accelerating", "Stabilizing" or "Archived",
      "new_momentum": "high", "medium" or "low",
      "new_risk_level": "watch_closely" or "monitor",
      "reason": "what in the content justifies the change",
      "supporting_ingestion_ids": ["id", ...]
    }
  ],
  "unchanged": ["every analyzed signal id not in updates"],
  "analysis_notes": "brief notes"
}

Every signal you were given must appear in exactly one of updates or unchanged. A signal that is simply not mentioned in the new content is unchanged; absence of coverage is never by itself evidence of decline. Use only signal ids and ingestion ids that appear in the input.`

// buildDetectionPrompt renders the project context and candidate content.
// Content is truncated to maxContentLength runes per ingestion to keep the
// prompt bounded.
func buildDetectionPrompt(project *models.Project, ingestions []models.Ingestion, maxContentLength int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Project: %s\n", project.Name)
	if project.DetectionInstructions != "" {
		fmt.Fprintf(&b, "Detection instructions: %s\n", project.DetectionInstructions)
	}
	if len(project.RiskCriteria) > 0 {
		fmt.Fprintf(&b, "Risk criteria (content matching these is watch_closely):\n")
		for _, c := range project.RiskCriteria {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	fmt.Fprintf(&b, "\nNew content (%d items):\n", len(ingestions))
	for _, ing := range ingestions {
		fmt.Fprintf(&b, "\n--- ingestion_id: %s (scraped %s, %s) ---\n%s\n",
			ing.ID,
			ing.ScrapedAt.Format("2006-01-02 15:04"),
			ing.ExtractionMethod,
			truncateRunes(ing.Content, maxContentLength),
		)
	}
	return b.String()
}

// buildMomentumPrompt renders open signals alongside the recent content
// they should be judged against.
func buildMomentumPrompt(project *models.Project, signals []models.Signal, ingestions []models.Ingestion, maxContentLength int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Project: %s\n", project.Name)
	fmt.Fprintf(&b, "\nTracked signals (%d):\n", len(signals))
	for _, sig := range signals {
		fmt.Fprintf(&b, "\n--- signal_id: %s ---\nheadline: %s\nsummary: %s\nstatus: %s\nmomentum: %s\nrisk_level: %s\ndetected_at: %s\n",
			sig.ID,
			sig.Headline,
			sig.Summary,
			sig.Status,
			sig.Momentum,
			sig.RiskLevel,
			sig.DetectedAt.Format("2006-01-02 15:04"),
		)
	}

	fmt.Fprintf(&b, "\nRecent content (%d items):\n", len(ingestions))
	for _, ing := range ingestions {
		fmt.Fprintf(&b, "\n--- ingestion_id: %s (scraped %s) ---\n%s\n",
			ing.ID,
			ing.ScrapedAt.Format("2006-01-02 15:04"),
			truncateRunes(ing.Content, maxContentLength),
		)
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + " [truncated]"
}
