package models

import (
	"time"
)

// Source represents one user-configured content origin (a feed URL, a forum
// thread, a news site) owned by a project. Sources are soft-deleted via
// IsActive so historical ingestions keep a valid parent.
type Source struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	URL         string     `json:"url"`
	DisplayName string     `json:"display_name,omitempty"`
	Platform    Platform   `json:"platform"`
	IsActive    bool       `json:"is_active"`
	LastFetchAt *time.Time `json:"last_fetch_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Platform categorizes a source URL by the extraction strategy it needs.
type Platform string

const (
	PlatformSocial      Platform = "social"
	PlatformForum       Platform = "forum"
	PlatformSyndication Platform = "syndication"
	PlatformNews        Platform = "news"
	PlatformGeneric     Platform = "generic"
)

// RequiresMinimumContent reports whether the minimum-word policy applies to
// content extracted for this platform. Social posts and forum comments are
// legitimately short; articles and feeds below the threshold are treated as
// extraction failures.
func (p Platform) RequiresMinimumContent() bool {
	switch p {
	case PlatformNews, PlatformSyndication, PlatformGeneric:
		return true
	default:
		return false
	}
}
