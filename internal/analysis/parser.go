package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/driftwatch/driftwatch/internal/models"
)

// ErrMalformedResponse marks a model response that could not be parsed into
// the expected schema. It is terminal for the run; there is no partial
// recovery from a response we cannot trust.
var ErrMalformedResponse = errors.New("malformed model response")

// detectionResponse is the JSON schema the detection prompt requests.
type detectionResponse struct {
	Signals []detectedSignal `json:"signals"`
	Notes   string           `json:"analysis_notes"`
}

type detectedSignal struct {
	Headline     string   `json:"headline"`
	Summary      string   `json:"summary"`
	KeyPoints    []string `json:"key_points"`
	RiskLevel    string   `json:"risk_level"`
	Tags         []string `json:"tags"`
	IngestionIDs []string `json:"supporting_ingestion_ids"`
}

// momentumResponse is the JSON schema the momentum prompt requests. Every
// analyzed signal must land in exactly one of updates or unchanged.
type momentumResponse struct {
	Updates   []momentumUpdate `json:"updates"`
	Unchanged []string         `json:"unchanged"`
	Notes     string           `json:"analysis_notes"`
}

type momentumUpdate struct {
	SignalID     string   `json:"signal_id"`
	NewStatus    string   `json:"new_status"`
	NewMomentum  string   `json:"new_momentum"`
	NewRiskLevel string   `json:"new_risk_level"`
	Reason       string   `json:"reason"`
	IngestionIDs []string `json:"supporting_ingestion_ids"`
}

// extractJSON finds the first balanced JSON object in text using brace
// matching, skipping braces inside strings. Handles responses wrapped in
// markdown code fences or surrounded by prose.
func extractJSON(text string) string {
	startIdx := strings.Index(text, "{")
	if startIdx < 0 {
		return ""
	}

	braceCount := 0
	inString := false
	escaped := false
	for i := startIdx; i < len(text); i++ {
		ch := text[i]

		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if ch == '{' {
				braceCount++
			} else if ch == '}' {
				braceCount--
				if braceCount == 0 {
					return text[startIdx : i+1]
				}
			}
		}
	}
	return ""
}

// parseDetectionResponse validates the raw response into candidate signals.
func parseDetectionResponse(raw string) (*detectionResponse, error) {
	doc := extractJSON(raw)
	if doc == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var resp detectionResponse
	if err := json.Unmarshal([]byte(doc), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	for i, sig := range resp.Signals {
		if strings.TrimSpace(sig.Headline) == "" {
			return nil, fmt.Errorf("%w: signal %d missing headline", ErrMalformedResponse, i)
		}
		if sig.RiskLevel != "" && !validRiskLevel(sig.RiskLevel) {
			return nil, fmt.Errorf("%w: signal %d has invalid risk_level %q", ErrMalformedResponse, i, sig.RiskLevel)
		}
	}
	return &resp, nil
}

// parseMomentumResponse validates the raw response into momentum updates.
func parseMomentumResponse(raw string) (*momentumResponse, error) {
	doc := extractJSON(raw)
	if doc == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var resp momentumResponse
	if err := json.Unmarshal([]byte(doc), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	for i, upd := range resp.Updates {
		if upd.SignalID == "" {
			return nil, fmt.Errorf("%w: update %d missing signal_id", ErrMalformedResponse, i)
		}
		if !validSignalStatus(upd.NewStatus) {
			return nil, fmt.Errorf("%w: update %d has invalid new_status %q", ErrMalformedResponse, i, upd.NewStatus)
		}
		if !validMomentum(upd.NewMomentum) {
			return nil, fmt.Errorf("%w: update %d has invalid new_momentum %q", ErrMalformedResponse, i, upd.NewMomentum)
		}
		if !validRiskLevel(upd.NewRiskLevel) {
			return nil, fmt.Errorf("%w: update %d has invalid new_risk_level %q", ErrMalformedResponse, i, upd.NewRiskLevel)
		}
	}
	return &resp, nil
}

// validateMomentumPartition checks that every analyzed signal appears in
// exactly one of updates or unchanged. A response that loses a signal, or
// lists one in both sets, cannot be trusted any more than unparsable JSON.
func validateMomentumPartition(resp *momentumResponse, analyzed []models.Signal) error {
	updated := make(map[string]bool, len(resp.Updates))
	for _, upd := range resp.Updates {
		updated[upd.SignalID] = true
	}
	unchanged := make(map[string]bool, len(resp.Unchanged))
	for _, id := range resp.Unchanged {
		unchanged[id] = true
	}

	for _, sig := range analyzed {
		inUpdates, inUnchanged := updated[sig.ID], unchanged[sig.ID]
		switch {
		case inUpdates && inUnchanged:
			return fmt.Errorf("%w: signal %s listed as both updated and unchanged", ErrMalformedResponse, sig.ID)
		case !inUpdates && !inUnchanged:
			return fmt.Errorf("%w: signal %s missing from both updates and unchanged", ErrMalformedResponse, sig.ID)
		}
	}
	return nil
}

func validRiskLevel(v string) bool {
	switch models.RiskLevel(v) {
	case models.RiskWatchClosely, models.RiskMonitor:
		return true
	}
	return false
}

func validSignalStatus(v string) bool {
	switch models.SignalStatus(v) {
	case models.SignalStatusNew, models.SignalStatusAccelerating, models.SignalStatusStabilizing, models.SignalStatusArchived:
		return true
	}
	return false
}

func validMomentum(v string) bool {
	switch models.SignalMomentum(v) {
	case models.MomentumHigh, models.MomentumMedium, models.MomentumLow:
		return true
	}
	return false
}
