package extraction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/driftwatch/driftwatch/internal/models"
)

// stubExtractor is a scripted tier for chain tests.
type stubExtractor struct {
	name     string
	supports func(models.Platform) bool
	result   *Result
	err      error
	calls    int
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Supports(p models.Platform) bool {
	if s.supports == nil {
		return true
	}
	return s.supports(p)
}

func (s *stubExtractor) Extract(ctx context.Context, target Target) (*Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func longContent() string {
	return strings.Repeat("word ", 100)
}

func TestChain_ShortCircuitsOnFirstSuccess(t *testing.T) {
	first := &stubExtractor{name: "first", result: &Result{Content: longContent(), Method: models.ExtractionMethodFeed}}
	second := &stubExtractor{name: "second", result: &Result{Content: longContent(), Method: models.ExtractionMethodBrowser}}

	chain := NewChain([]Extractor{first, second}, 80, discardLogger())
	result, err := chain.Extract(context.Background(), Target{URL: "https://example.com/a", Platform: models.PlatformNews})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if result.Method != models.ExtractionMethodFeed {
		t.Errorf("method = %q, want first tier's", result.Method)
	}
	if second.calls != 0 {
		t.Error("second tier should not run after first succeeds")
	}
}

func TestChain_FallsThroughOnShortContent(t *testing.T) {
	short := &stubExtractor{name: "short", result: &Result{Content: "only a few words here", Method: models.ExtractionMethodReadability}}
	full := &stubExtractor{name: "full", result: &Result{Content: longContent(), Method: models.ExtractionMethodBrowser}}

	chain := NewChain([]Extractor{short, full}, 80, discardLogger())
	result, err := chain.Extract(context.Background(), Target{URL: "https://example.com/a", Platform: models.PlatformNews})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if result.Method != models.ExtractionMethodBrowser {
		t.Errorf("short content should fall through, got method %q", result.Method)
	}
}

func TestChain_ShortContentOKForSocial(t *testing.T) {
	short := &stubExtractor{name: "short", result: &Result{Content: "brief social post", Method: models.ExtractionMethodBrowser}}

	chain := NewChain([]Extractor{short}, 80, discardLogger())
	result, err := chain.Extract(context.Background(), Target{URL: "https://x.com/u/status/1", Platform: models.PlatformSocial})
	if err != nil {
		t.Fatalf("social post below threshold should succeed: %v", err)
	}
	if result.WordCount != 3 {
		t.Errorf("word count = %d, want 3", result.WordCount)
	}
}

func TestChain_AllTiersFailIsTerminal(t *testing.T) {
	a := &stubExtractor{name: "a", err: errors.New("tier a down")}
	b := &stubExtractor{name: "b", err: errors.New("tier b down")}

	chain := NewChain([]Extractor{a, b}, 80, discardLogger())
	_, err := chain.Extract(context.Background(), Target{URL: "https://example.com/a", Platform: models.PlatformNews})
	if err == nil {
		t.Fatal("expected terminal error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "tier a down") || !strings.Contains(msg, "tier b down") {
		t.Errorf("aggregated error should name each tier failure: %v", err)
	}
}

func TestChain_SkipsUnsupportedTiers(t *testing.T) {
	feedOnly := &stubExtractor{
		name:     "feed",
		supports: func(p models.Platform) bool { return p == models.PlatformSyndication },
		result:   &Result{Content: longContent(), Method: models.ExtractionMethodFeed},
	}
	universal := &stubExtractor{name: "browser", result: &Result{Content: longContent(), Method: models.ExtractionMethodBrowser}}

	chain := NewChain([]Extractor{feedOnly, universal}, 80, discardLogger())
	result, err := chain.Extract(context.Background(), Target{URL: "https://example.com/a", Platform: models.PlatformNews})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if feedOnly.calls != 0 {
		t.Error("feed tier should be skipped for news")
	}
	if result.Method != models.ExtractionMethodBrowser {
		t.Errorf("method = %q", result.Method)
	}
}

func TestCountWords(t *testing.T) {
	if n := CountWords("  one two\nthree  "); n != 3 {
		t.Errorf("CountWords = %d, want 3", n)
	}
	if n := CountWords(""); n != 0 {
		t.Errorf("CountWords(empty) = %d, want 0", n)
	}
}
