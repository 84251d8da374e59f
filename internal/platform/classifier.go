// Package platform maps source URLs to extraction strategies. Classification
// is a pure function of the URL; anything unparsable or unrecognized falls
// back to the generic strategy.
package platform

import (
	"net/url"
	"strings"

	"github.com/driftwatch/driftwatch/internal/models"
)

var socialHosts = []string{
	"twitter.com",
	"x.com",
	"bsky.app",
	"mastodon.social",
	"threads.net",
	"t.me",
	"instagram.com",
	"tiktok.com",
	"linkedin.com",
	"facebook.com",
}

var forumHosts = []string{
	"reddit.com",
	"redd.it",
	"news.ycombinator.com",
	"lobste.rs",
	"forums.",
	"community.",
	"discuss.",
}

var newsHosts = []string{
	"reuters.com",
	"apnews.com",
	"bbc.com",
	"bbc.co.uk",
	"nytimes.com",
	"washingtonpost.com",
	"theguardian.com",
	"bloomberg.com",
	"cnn.com",
	"cnbc.com",
	"ft.com",
	"wsj.com",
	"aljazeera.com",
	"politico.com",
	"axios.com",
}

var feedHosts = []string{
	"feeds.",
	"feedburner.com",
	"feedproxy.google.com",
	"rss.",
}

var feedPathFragments = []string{
	"/feed",
	"/rss",
	"/atom",
	".xml",
	".rss",
}

// Classify maps a URL to the extraction platform that should handle it.
// It never fails; an unparsable URL classifies as generic.
func Classify(rawURL string) models.Platform {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return models.PlatformGeneric
	}

	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	path := strings.ToLower(u.Path)

	// Feeds first: a news site's /rss path still needs the feed parser.
	for _, fragment := range feedPathFragments {
		if strings.Contains(path, fragment) {
			return models.PlatformSyndication
		}
	}
	for _, h := range feedHosts {
		if matchHost(host, h) {
			return models.PlatformSyndication
		}
	}

	for _, h := range socialHosts {
		if matchHost(host, h) {
			return models.PlatformSocial
		}
	}

	for _, h := range forumHosts {
		if matchHost(host, h) {
			return models.PlatformForum
		}
	}

	for _, h := range newsHosts {
		if matchHost(host, h) {
			return models.PlatformNews
		}
	}

	return models.PlatformGeneric
}

// matchHost matches exact hosts, subdomains, and prefix patterns ending in a
// dot (e.g. "forums." matches forums.example.com).
func matchHost(host, pattern string) bool {
	if strings.HasSuffix(pattern, ".") {
		return strings.HasPrefix(host, pattern)
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
