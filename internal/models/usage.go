package models

import (
	"time"
)

// UsageLog is one immutable row per AI invocation, recording token
// consumption and the derived cost. Aggregation is read-side only.
type UsageLog struct {
	ID               string            `json:"id"`
	ProjectID        string            `json:"project_id"`
	ActionType       string            `json:"action_type"` // e.g. "signal_detection", "momentum_analysis"
	Model            string            `json:"model"`
	PromptTokens     int               `json:"prompt_tokens"`
	CompletionTokens int               `json:"completion_tokens"`
	EstimatedCost    float64           `json:"estimated_cost"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// TokenUsage aggregates token counts across one or more model invocations.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add merges another usage into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
