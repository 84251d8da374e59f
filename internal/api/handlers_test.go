package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/internal/analysis"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/evidence"
	"github.com/driftwatch/driftwatch/internal/extraction"
	"github.com/driftwatch/driftwatch/internal/ingest"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/scheduler"
	"github.com/driftwatch/driftwatch/internal/usage"
)

type staticExtractor struct{}

func (staticExtractor) Name() string { return "feed" }

func (staticExtractor) Supports(p models.Platform) bool { return true }

func (staticExtractor) Extract(ctx context.Context, target extraction.Target) (*extraction.Result, error) {
	return &extraction.Result{Content: "content from " + target.URL, Method: models.ExtractionMethodFeed, ItemsFound: 1}, nil
}

type silentModel struct{}

func (silentModel) Model() string { return "gpt-4o-mini" }

func (silentModel) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, models.TokenUsage, error) {
	return `{"signals":[],"analysis_notes":""}`, models.TokenUsage{}, nil
}

func testHandler(t *testing.T) (*Handler, *database.MemoryScrapeLockRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	projects := database.NewMemoryProjectRepository()
	sources := database.NewMemorySourceRepository()
	locks := database.NewMemoryScrapeLockRepository()
	scrapeLogs := database.NewMemoryScrapeLogRepository()
	ingestions := database.NewMemoryIngestionRepository(func(string) string { return "proj-1" })
	signals := database.NewMemorySignalRepository()
	evidences := database.NewMemoryEvidenceRepository()
	usages := database.NewMemoryUsageRepository()

	projects.Put(models.Project{ID: "proj-1", Name: "watch", RefreshIntervalMins: 60, IsActive: true})
	sources.Put(models.Source{ID: "src-1", ProjectID: "proj-1", URL: "https://example.com/feed", Platform: models.PlatformForum, IsActive: true})

	chain := extraction.NewChain([]extraction.Extractor{staticExtractor{}}, 5, logger)
	svc := ingest.NewService(ingestions, sources, scrapeLogs, chain, logger)
	orch := scheduler.NewOrchestrator(projects, sources, locks, svc, config.ScraperConfig{
		LockTTL:              10 * time.Minute,
		Concurrency:          2,
		MaxProjectsPerRun:    5,
		MaxSourcesPerProject: 20,
	}, logger)

	engine := analysis.NewEngine(
		projects, ingestions, signals,
		evidence.NewLinker(evidences, logger),
		usage.NewLedger(usages, logger),
		silentModel{},
		config.AnalysisConfig{
			DetectionWindow: 24 * time.Hour,
			MomentumWindow:  48 * time.Hour,
			MinSignalAge:    24 * time.Hour,
			MaxIngestions:   50,
		},
		logger,
	)

	orch.SetDetector(engine)

	return NewHandler(nil, orch, engine, logger), locks
}

func TestScrapeProjectHandlerRequiresProjectID(t *testing.T) {
	h, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/scrape/project", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	h.ScrapeProjectHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestScrapeProjectHandlerRejectsGet(t *testing.T) {
	h, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/scrape/project", nil)
	rr := httptest.NewRecorder()
	h.ScrapeProjectHandler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}

func TestScrapeProjectHandlerRunsOnDemand(t *testing.T) {
	h, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/scrape/project", strings.NewReader(`{"project_id":"proj-1"}`))
	rr := httptest.NewRecorder()
	h.ScrapeProjectHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var result models.ProjectScrapeResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if result.SourcesScraped != 1 || result.Successful != 1 {
		t.Errorf("result = %+v, want one successful source", result)
	}
}

func TestScrapeProjectHandlerConflictWhenLocked(t *testing.T) {
	h, locks := testHandler(t)
	if err := locks.Acquire(context.Background(), "proj-1", "other", 10*time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/scrape/project", strings.NewReader(`{"project_id":"proj-1"}`))
	rr := httptest.NewRecorder()
	h.ScrapeProjectHandler(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestScrapeProjectHandlerNotFound(t *testing.T) {
	h, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/scrape/project", strings.NewReader(`{"project_id":"missing"}`))
	rr := httptest.NewRecorder()
	h.ScrapeProjectHandler(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestDetectHandlerZeroResultWithoutContent(t *testing.T) {
	h, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/analysis/detect", strings.NewReader(`{"project_id":"proj-1"}`))
	rr := httptest.NewRecorder()
	h.DetectHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var result models.DetectionResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if result.IngestionsAnalyzed != 0 || result.SignalsDetected != 0 {
		t.Errorf("result = %+v, want zero-result", result)
	}
}
