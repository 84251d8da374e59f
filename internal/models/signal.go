package models

import (
	"time"
	"unicode/utf8"
)

// MaxHeadlineLength bounds signal headlines in characters; anything longer
// returned by the model is truncated on insert.
const MaxHeadlineLength = 200

// Signal is a detected emerging narrative with evolving status, momentum and
// risk. Created by the detection engine; mutated only by the momentum engine
// (status/momentum/risk plus a history append) until archived.
type Signal struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	Headline   string         `json:"headline"`
	Summary    string         `json:"summary"`
	KeyPoints  []string       `json:"key_points"`
	Status     SignalStatus   `json:"status"`
	Momentum   SignalMomentum `json:"momentum"`
	RiskLevel  RiskLevel      `json:"risk_level"`
	Tags       []string       `json:"tags"`
	DetectedAt time.Time      `json:"detected_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// SignalStatus describes a signal's lifecycle stage.
type SignalStatus string

const (
	SignalStatusNew          SignalStatus = "New"
	SignalStatusAccelerating SignalStatus = "Accelerating"
	SignalStatusStabilizing  SignalStatus = "Stabilizing"
	SignalStatusArchived     SignalStatus = "Archived"
)

// SignalMomentum is the qualitative trend classification of a signal's
// attention trajectory.
type SignalMomentum string

const (
	MomentumHigh   SignalMomentum = "high"
	MomentumMedium SignalMomentum = "medium"
	MomentumLow    SignalMomentum = "low"
)

// RiskLevel indicates how closely a signal should be watched.
type RiskLevel string

const (
	RiskWatchClosely RiskLevel = "watch_closely"
	RiskMonitor      RiskLevel = "monitor"
)

// Open reports whether the signal is still eligible for momentum analysis.
func (s Signal) Open() bool {
	return s.Status != SignalStatusArchived
}

// EligibleForMomentum reports whether the signal is old enough to judge.
// Signals younger than minAge are structurally ineligible, not errors.
func (s Signal) EligibleForMomentum(now time.Time, minAge time.Duration) bool {
	return s.Open() && now.Sub(s.DetectedAt) >= minAge
}

// TruncateHeadline enforces the headline length bound. The bound is in
// runes, matching the character-typed column, so a multi-byte headline is
// never cut mid-rune.
func TruncateHeadline(headline string) string {
	if utf8.RuneCountInString(headline) <= MaxHeadlineLength {
		return headline
	}
	return string([]rune(headline)[:MaxHeadlineLength])
}

// MomentumHistoryEntry is one immutable row in a signal's append-only
// momentum history. Entries are never rewritten.
type MomentumHistoryEntry struct {
	ID             string         `json:"id"`
	SignalID       string         `json:"signal_id"`
	PreviousStatus SignalStatus   `json:"previous_status"`
	NewStatus      SignalStatus   `json:"new_status"`
	PrevMomentum   SignalMomentum `json:"previous_momentum"`
	NewMomentum    SignalMomentum `json:"new_momentum"`
	PrevRiskLevel  RiskLevel      `json:"previous_risk_level"`
	NewRiskLevel   RiskLevel      `json:"new_risk_level"`
	Reason         string         `json:"reason"`
	IngestionIDs   []string       `json:"ingestion_ids"`
	EvidenceCount  int            `json:"evidence_count"`
	CreatedAt      time.Time      `json:"created_at"`
}
