package models

import (
	"time"
)

// ScrapeLog records one scrape attempt against a source. Rows are append-only;
// completed and failed are the terminal states.
type ScrapeLog struct {
	ID              string       `json:"id"`
	SourceID        string       `json:"source_id"`
	Status          ScrapeStatus `json:"status"`
	StartedAt       time.Time    `json:"started_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	ItemsFound      int          `json:"items_found"`
	ItemsProcessed  int          `json:"items_processed"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	ExecutionTimeMs int64        `json:"execution_time_ms"`
}

// ScrapeStatus indicates the state of a scrape attempt.
type ScrapeStatus string

const (
	ScrapeStatusPending   ScrapeStatus = "pending"
	ScrapeStatusRunning   ScrapeStatus = "running"
	ScrapeStatusCompleted ScrapeStatus = "completed"
	ScrapeStatusFailed    ScrapeStatus = "failed"
)

// ScrapeLock is a time-boxed mutual-exclusion marker. At most one live
// (non-expired) lock exists per project; it is the only thing preventing two
// overlapping scheduler invocations from scraping the same project.
type ScrapeLock struct {
	ProjectID string    `json:"project_id"`
	LockedBy  string    `json:"locked_by"` // execution id of the holder
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the lock has passed its expiry.
func (l ScrapeLock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
