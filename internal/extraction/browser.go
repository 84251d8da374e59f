package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/driftwatch/driftwatch/internal/models"
)

// BrowserConfig configures the headless-browser fallback tier.
type BrowserConfig struct {
	// BinPath overrides the Chrome binary location. Empty = let the
	// launcher resolve one.
	BinPath string

	// Hosted launches Chrome with the flags container runtimes require
	// (no sandbox, no shared memory).
	Hosted bool

	// NavigationTimeout bounds page navigation and load.
	NavigationTimeout time.Duration

	// SelectorTimeout bounds each individual selector wait.
	SelectorTimeout time.Duration

	// ScrollCount is how many times to scroll for lazy-loaded content.
	ScrollCount int

	// ScrollDelay is the pause between scrolls.
	ScrollDelay time.Duration
}

func (c *BrowserConfig) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.SelectorTimeout <= 0 {
		c.SelectorTimeout = 8 * time.Second
	}
	if c.ScrollDelay <= 0 {
		c.ScrollDelay = 1500 * time.Millisecond
	}
}

// BrowserExtractor is the full browser-automation fallback: headless Chrome
// via rod with stealth, platform-specific selector waits, optional scrolling,
// and a generic DOM heuristic when platform selectors yield nothing. It is
// the last and most expensive tier.
type BrowserExtractor struct {
	cfg    BrowserConfig
	logger *slog.Logger
}

// NewBrowserExtractor creates the browser tier.
func NewBrowserExtractor(cfg BrowserConfig, logger *slog.Logger) *BrowserExtractor {
	cfg.defaults()
	return &BrowserExtractor{cfg: cfg, logger: logger}
}

// Name identifies the tier.
func (e *BrowserExtractor) Name() string { return "browser" }

// Supports covers every platform; this tier is the universal fallback.
func (e *BrowserExtractor) Supports(p models.Platform) bool { return true }

// Extract launches a browser session, navigates, waits for platform
// selectors, optionally scrolls, and extracts text. The browser is released
// on every exit path.
func (e *BrowserExtractor) Extract(ctx context.Context, target Target) (*Result, error) {
	lnch := e.newLauncher()
	controlURL, err := lnch.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser launch failed: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		lnch.Cleanup()
		return nil, fmt.Errorf("browser connect failed: %w", err)
	}
	defer func() {
		// Release order matters: page, browser, then the launched process.
		_ = browser.Close()
		lnch.Cleanup()
	}()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, e.cfg.NavigationTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(target.URL); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		// Pages with hung subresources still often have usable DOM.
		e.logger.Debug("page load wait timed out, extracting anyway",
			"url", target.URL, "error", err)
	}

	scrolled := false
	if scrollPlatforms[target.Platform] && e.cfg.ScrollCount > 0 {
		e.scroll(ctx, page)
		scrolled = true
	}

	content, matched := e.extractBySelectors(ctx, page, selectorsFor(target.Platform))
	if content == "" {
		// Generic DOM heuristic: article, then main, then body.
		content, matched = e.extractBySelectors(ctx, page, genericFallbackSelectors)
	}

	if strings.TrimSpace(content) == "" {
		return nil, ErrNoContent
	}

	title := ""
	if info, err := page.Info(); err == nil {
		title = info.Title
	}

	return &Result{
		Content:          strings.TrimSpace(content),
		Title:            title,
		Method:           models.ExtractionMethodBrowser,
		SelectorsMatched: matched,
		Scrolled:         scrolled,
	}, nil
}

// newLauncher builds an environment-aware Chrome launcher. Hosted runtimes
// (Cloud Run, containers) cannot run the Chrome sandbox.
func (e *BrowserExtractor) newLauncher() *launcher.Launcher {
	lnch := launcher.New().Headless(true)
	if e.cfg.BinPath != "" {
		lnch = lnch.Bin(e.cfg.BinPath)
	}
	if e.cfg.Hosted {
		lnch = lnch.NoSandbox(true).
			Set("disable-dev-shm-usage").
			Set("disable-gpu")
	}
	return lnch
}

// extractBySelectors tries selectors in priority order with a bounded wait
// per selector, concatenating the text of all matching nodes for the first
// selector that yields anything.
func (e *BrowserExtractor) extractBySelectors(ctx context.Context, page *rod.Page, selectors []string) (string, []string) {
	for _, selector := range selectors {
		waitCtx, cancel := context.WithTimeout(ctx, e.cfg.SelectorTimeout)
		_, err := page.Context(waitCtx).Element(selector)
		cancel()
		if err != nil {
			continue
		}

		elements, err := page.Elements(selector)
		if err != nil || len(elements) == 0 {
			continue
		}

		var b strings.Builder
		for _, el := range elements {
			text, err := el.Text()
			if err != nil || strings.TrimSpace(text) == "" {
				continue
			}
			b.WriteString(strings.TrimSpace(text))
			b.WriteString("\n\n")
		}

		if content := strings.TrimSpace(b.String()); content != "" {
			return content, []string{selector}
		}
	}

	return "", nil
}

// scroll pages down repeatedly with a delay, letting lazy-loaded content
// attach before extraction.
func (e *BrowserExtractor) scroll(ctx context.Context, page *rod.Page) {
	for i := 0; i < e.cfg.ScrollCount; i++ {
		_, err := page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
		if err != nil {
			e.logger.Debug("scroll failed", "iteration", i, "error", err)
			return
		}
		select {
		case <-time.After(e.cfg.ScrollDelay):
		case <-ctx.Done():
			return
		}
	}
}
