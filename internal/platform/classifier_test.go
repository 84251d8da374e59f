package platform

import (
	"testing"

	"github.com/driftwatch/driftwatch/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		url  string
		want models.Platform
	}{
		{"https://twitter.com/user/status/123", models.PlatformSocial},
		{"https://x.com/someone/status/456", models.PlatformSocial},
		{"https://bsky.app/profile/a.example/post/xyz", models.PlatformSocial},
		{"https://www.reddit.com/r/worldnews/comments/abc/title/", models.PlatformForum},
		{"https://news.ycombinator.com/item?id=1", models.PlatformForum},
		{"https://forums.example.com/thread/42", models.PlatformForum},
		{"https://example.com/feed", models.PlatformSyndication},
		{"https://example.com/rss.xml", models.PlatformSyndication},
		{"https://example.com/blog/atom", models.PlatformSyndication},
		{"https://feeds.bbci.co.uk/news/world/rss.xml", models.PlatformSyndication},
		{"https://www.reuters.com/world/some-article/", models.PlatformNews},
		{"https://bbc.co.uk/news/articles/xyz", models.PlatformNews},
		{"https://myblog.example.org/posts/1", models.PlatformGeneric},
		{"", models.PlatformGeneric},
		{"not a url at all", models.PlatformGeneric},
		{"://missing-scheme", models.PlatformGeneric},
	}

	for _, tt := range tests {
		if got := Classify(tt.url); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestClassify_FeedBeatsNews(t *testing.T) {
	// A news host serving a feed path needs the feed parser, not readability.
	if got := Classify("https://www.theguardian.com/world/rss"); got != models.PlatformSyndication {
		t.Errorf("expected syndication for news host feed path, got %q", got)
	}
}

func TestClassify_DoesNotMatchSubstringHosts(t *testing.T) {
	// notreddit.com must not classify as forum.
	if got := Classify("https://notreddit.com/r/fake"); got == models.PlatformForum {
		t.Error("substring host should not match forum")
	}
}
