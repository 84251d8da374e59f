// Package extraction implements the tiered content-extraction pipeline:
// cheap fast paths (feed, forum API, readability) tried in strict priority
// order before the full browser-automation fallback. The first tier meeting
// the minimum-content policy wins.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
)

// ErrContentTooShort marks an extraction that technically succeeded but
// yielded too little content to count as a success for this platform.
var ErrContentTooShort = errors.New("extracted content below minimum word count")

// ErrNoContent marks an extraction that produced nothing usable.
var ErrNoContent = errors.New("no content extracted")

// Target identifies what to extract.
type Target struct {
	URL      string
	Platform models.Platform
}

// Result is the outcome of a successful extraction attempt.
type Result struct {
	Content          string
	Title            string
	Method           models.ExtractionMethod
	WordCount        int
	ItemsFound       int
	SelectorsMatched []string
	Scrolled         bool
}

// Extractor is one tier of the fallback chain.
type Extractor interface {
	// Name identifies the tier for logging and metrics.
	Name() string

	// Supports reports whether this tier applies to the platform.
	Supports(platform models.Platform) bool

	// Extract attempts to retrieve content for the target.
	Extract(ctx context.Context, target Target) (*Result, error)
}

// AttemptObserver receives a record of every extraction attempt, successful
// or not. The metrics collector implements this.
type AttemptObserver interface {
	ObserveAttempt(domain string, platform models.Platform, method models.ExtractionMethod, duration time.Duration, err error)
}

// Chain runs extractors in priority order, short-circuiting on the first
// result that meets the minimum-content policy.
type Chain struct {
	extractors   []Extractor
	minWordCount int
	logger       *slog.Logger
	observer     AttemptObserver
}

// NewChain builds a chain over the given tiers, in the order supplied.
func NewChain(extractors []Extractor, minWordCount int, logger *slog.Logger) *Chain {
	return &Chain{
		extractors:   extractors,
		minWordCount: minWordCount,
		logger:       logger,
	}
}

// SetObserver attaches an attempt observer. Nil disables observation.
func (c *Chain) SetObserver(obs AttemptObserver) {
	c.observer = obs
}

// Extract walks the tiers for the target. Failure at every tier is terminal
// for the scrape cycle; the aggregated error names each tier's failure.
func (c *Chain) Extract(ctx context.Context, target Target) (*Result, error) {
	domain := hostOf(target.URL)
	var tierErrs []string

	for _, ext := range c.extractors {
		if !ext.Supports(target.Platform) {
			continue
		}

		start := time.Now()
		result, err := ext.Extract(ctx, target)
		duration := time.Since(start)

		if err == nil && result != nil {
			result.WordCount = CountWords(result.Content)
			if target.Platform.RequiresMinimumContent() && result.WordCount < c.minWordCount {
				err = fmt.Errorf("%w: %d words via %s", ErrContentTooShort, result.WordCount, ext.Name())
				result = nil
			}
		} else if err == nil {
			err = ErrNoContent
		}

		if c.observer != nil {
			method := models.ExtractionMethod(ext.Name())
			if result != nil {
				method = result.Method
			}
			c.observer.ObserveAttempt(domain, target.Platform, method, duration, err)
		}

		if err != nil {
			c.logger.Debug("extraction tier failed",
				"tier", ext.Name(),
				"url", target.URL,
				"domain", domain,
				"platform", target.Platform,
				"duration_ms", duration.Milliseconds(),
				"error", err)
			tierErrs = append(tierErrs, fmt.Sprintf("%s: %v", ext.Name(), err))
			continue
		}

		c.logger.Info("extraction succeeded",
			"tier", ext.Name(),
			"url", target.URL,
			"domain", domain,
			"platform", target.Platform,
			"method", result.Method,
			"word_count", result.WordCount,
			"items_found", result.ItemsFound,
			"selectors_matched", result.SelectorsMatched,
			"scrolled", result.Scrolled,
			"duration_ms", duration.Milliseconds())
		return result, nil
	}

	if len(tierErrs) == 0 {
		return nil, fmt.Errorf("no extraction tier supports platform %q", target.Platform)
	}
	return nil, fmt.Errorf("all extraction tiers failed: %s", strings.Join(tierErrs, "; "))
}

// CountWords counts whitespace-separated tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
