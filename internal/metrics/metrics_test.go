package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics endpoint returned %d", rr.Code)
	}
	return rr.Body.String()
}

func TestCollectorRecordsExtractionAttempts(t *testing.T) {
	c, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	c.ObserveAttempt("example.com", models.PlatformNews, models.ExtractionMethodReadability, 120*time.Millisecond, nil)
	c.ObserveAttempt("example.com", models.PlatformNews, models.ExtractionMethodBrowser, time.Second, errors.New("timeout"))

	body := scrape(t, c)
	if !strings.Contains(body, `driftwatch_extraction_attempts_total{outcome="success",platform="news",tier="readability"} 1`) {
		t.Error("missing successful readability attempt")
	}
	if !strings.Contains(body, `driftwatch_extraction_attempts_total{outcome="failure",platform="news",tier="browser"} 1`) {
		t.Error("missing failed browser attempt")
	}
}

func TestCollectorRecordsModelCallsAndStageOutcomes(t *testing.T) {
	c, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	usage := models.TokenUsage{PromptTokens: 100, CompletionTokens: 40, TotalTokens: 140}
	c.ObserveModelCall("signal_detection", 2*time.Second, usage, nil)
	c.ObserveDetection(models.DetectionResult{SignalsDetected: 3})
	c.ObserveMomentum(models.MomentumResult{SignalsUpdated: 2})
	c.ObserveProjectScrape(models.ProjectScrapeResult{Duplicates: 1, Failed: 2})

	body := scrape(t, c)
	checks := []string{
		`driftwatch_model_tokens_total{action="signal_detection",kind="prompt"} 100`,
		`driftwatch_model_tokens_total{action="signal_detection",kind="completion"} 40`,
		`driftwatch_analysis_signals_created_total 3`,
		`driftwatch_analysis_momentum_updates_total 2`,
		`driftwatch_ingest_duplicates_skipped_total 1`,
		`driftwatch_ingest_scrape_failures_total 2`,
	}
	for _, want := range checks {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestInstrumentHandlerRecordsStatus(t *testing.T) {
	c, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	handler := c.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	body := scrape(t, c)
	if !strings.Contains(body, `driftwatch_http_requests_total{method="POST",path="/api/v1/scrape",status="202"} 1`) {
		t.Error("missing instrumented request count")
	}
}
