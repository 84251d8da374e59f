package models

import (
	"time"
)

// Project is the unit of isolation for the pipeline: sources, signals,
// locks, and usage are all scoped to a project.
type Project struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	DetectionInstructions string     `json:"detection_instructions,omitempty"`
	RiskCriteria          []string   `json:"risk_criteria,omitempty"`
	RefreshIntervalMins   int        `json:"refresh_interval_minutes"`
	LastRefreshAt         *time.Time `json:"last_refresh_at,omitempty"`
	IsActive              bool       `json:"is_active"`
	CreatedAt             time.Time  `json:"created_at"`
}

// AllowedRefreshIntervals lists the refresh cadences (in minutes) a project
// may be configured with. The scheduler rejects anything else.
var AllowedRefreshIntervals = []int{30, 60, 180, 360, 720, 1440}

// IsAllowedRefreshInterval reports whether minutes is a valid cadence.
func IsAllowedRefreshInterval(minutes int) bool {
	for _, v := range AllowedRefreshIntervals {
		if v == minutes {
			return true
		}
	}
	return false
}

// DueForRefresh reports whether the project's configured interval has
// elapsed since its last refresh. A project that has never refreshed is
// always due.
func (p Project) DueForRefresh(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.LastRefreshAt == nil {
		return true
	}
	interval := time.Duration(p.RefreshIntervalMins) * time.Minute
	return now.Sub(*p.LastRefreshAt) >= interval
}
