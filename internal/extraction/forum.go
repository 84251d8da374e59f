package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/driftwatch/driftwatch/internal/models"
)

// ForumExtractor is the forum fast path: fetch the thread's structured JSON
// endpoint directly instead of rendering the page. Covers Reddit-style
// listing documents and Discourse-style post streams.
type ForumExtractor struct {
	client   *http.Client
	stripper *bluemonday.Policy
	maxPosts int
}

// NewForumExtractor creates the forum tier with the given HTTP timeout.
func NewForumExtractor(timeout time.Duration) *ForumExtractor {
	return &ForumExtractor{
		client:   &http.Client{Timeout: timeout},
		stripper: bluemonday.StrictPolicy(),
		maxPosts: 50,
	}
}

// Name identifies the tier.
func (e *ForumExtractor) Name() string { return "forum_api" }

// Supports restricts this tier to forum sources.
func (e *ForumExtractor) Supports(p models.Platform) bool {
	return p == models.PlatformForum
}

// Extract fetches the JSON endpoint for the thread and flattens post bodies
// into one content block.
func (e *ForumExtractor) Extract(ctx context.Context, target Target) (*Result, error) {
	body, err := e.fetch(ctx, jsonEndpoint(target.URL))
	if err != nil {
		return nil, err
	}

	posts, title := parseForumJSON(body)
	if len(posts) == 0 {
		return nil, ErrNoContent
	}
	if len(posts) > e.maxPosts {
		posts = posts[:e.maxPosts]
	}

	var b strings.Builder
	for _, post := range posts {
		text := e.clean(post)
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	content := strings.TrimSpace(b.String())
	if content == "" {
		return nil, ErrNoContent
	}

	return &Result{
		Content:    content,
		Title:      e.clean(title),
		Method:     models.ExtractionMethodForumAPI,
		ItemsFound: len(posts),
	}, nil
}

// jsonEndpoint derives the structured-data URL for a thread page. Reddit
// threads respond to the page URL with a .json suffix; other forums are
// assumed to already point at a JSON endpoint or support the same suffix.
func jsonEndpoint(threadURL string) string {
	trimmed := strings.TrimSuffix(threadURL, "/")
	if strings.HasSuffix(trimmed, ".json") {
		return trimmed
	}
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		return trimmed[:idx] + ".json"
	}
	return trimmed + ".json"
}

// redditListing is the Reddit thread JSON shape: an array of listings whose
// children carry post and comment bodies.
type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title    string `json:"title"`
				Selftext string `json:"selftext"`
				Body     string `json:"body"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// discourseTopic is the Discourse topic JSON shape.
type discourseTopic struct {
	Title      string `json:"title"`
	PostStream struct {
		Posts []struct {
			Cooked string `json:"cooked"`
		} `json:"posts"`
	} `json:"post_stream"`
}

// parseForumJSON extracts post texts and a thread title from either
// supported document shape. Returns nothing when neither matches.
func parseForumJSON(body []byte) ([]string, string) {
	var listings []redditListing
	if err := json.Unmarshal(body, &listings); err == nil {
		var posts []string
		var title string
		for _, listing := range listings {
			for _, child := range listing.Data.Children {
				if child.Data.Title != "" && title == "" {
					title = child.Data.Title
				}
				if child.Data.Selftext != "" {
					posts = append(posts, child.Data.Title+"\n"+child.Data.Selftext)
				} else if child.Data.Title != "" {
					posts = append(posts, child.Data.Title)
				}
				if child.Data.Body != "" {
					posts = append(posts, child.Data.Body)
				}
			}
		}
		if len(posts) > 0 {
			return posts, title
		}
	}

	var topic discourseTopic
	if err := json.Unmarshal(body, &topic); err == nil && len(topic.PostStream.Posts) > 0 {
		posts := make([]string, 0, len(topic.PostStream.Posts))
		for _, post := range topic.PostStream.Posts {
			if post.Cooked != "" {
				posts = append(posts, post.Cooked)
			}
		}
		return posts, topic.Title
	}

	return nil, ""
}

func (e *ForumExtractor) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forum endpoint fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (e *ForumExtractor) clean(s string) string {
	s = e.stripper.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
