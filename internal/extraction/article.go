package extraction

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/driftwatch/driftwatch/internal/models"
)

// ArticleExtractor is the article fast path: fetch raw HTML and run a
// readability-style extraction, no browser.
type ArticleExtractor struct {
	client *http.Client
}

// NewArticleExtractor creates the article tier with the given HTTP timeout.
func NewArticleExtractor(timeout time.Duration) *ArticleExtractor {
	return &ArticleExtractor{
		client: &http.Client{Timeout: timeout},
	}
}

// Name identifies the tier.
func (e *ArticleExtractor) Name() string { return "readability" }

// Supports covers everything except syndication feeds, which the feed tier
// already owns; readability on feed XML yields garbage.
func (e *ArticleExtractor) Supports(p models.Platform) bool {
	return p != models.PlatformSyndication
}

// Extract fetches the page and extracts the readable article body.
func (e *ArticleExtractor) Extract(ctx context.Context, target Target) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("article fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	pageURL, err := url.Parse(target.URL)
	if err != nil {
		pageURL = nil
	}

	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return nil, fmt.Errorf("readability extraction failed: %w", err)
	}

	if article.TextContent == "" {
		return nil, ErrNoContent
	}

	return &Result{
		Content: article.TextContent,
		Title:   article.Title,
		Method:  models.ExtractionMethodReadability,
	}, nil
}
