package extraction

import (
	"github.com/driftwatch/driftwatch/internal/models"
)

// platformSelectors lists the CSS selectors the browser tier tries for each
// platform, in priority order. The generic DOM fallback (article, then main,
// then body) applies when none of these yield text.
var platformSelectors = map[models.Platform][]string{
	models.PlatformSocial: {
		"[data-testid='tweetText']",
		"[data-testid='postText']",
		"div[role='article']",
		".post-content",
	},
	models.PlatformForum: {
		"[data-testid='post-container']",
		"shreddit-post",
		".usertext-body",
		".comment .md",
		".post-body",
	},
	models.PlatformNews: {
		"article",
		"[itemprop='articleBody']",
		".article-body",
		".story-body",
		".entry-content",
	},
	models.PlatformGeneric: {
		"article",
		".content",
		".post",
	},
}

// genericFallbackSelectors is the last-resort DOM heuristic, broadest last.
var genericFallbackSelectors = []string{"article", "main", "body"}

// scrollPlatforms lists platforms whose pages lazy-load content and need
// scrolling before extraction.
var scrollPlatforms = map[models.Platform]bool{
	models.PlatformSocial: true,
	models.PlatformForum:  true,
}

// selectorsFor returns the selector set for a platform, defaulting to the
// generic set.
func selectorsFor(p models.Platform) []string {
	if sels, ok := platformSelectors[p]; ok {
		return sels
	}
	return platformSelectors[models.PlatformGeneric]
}
