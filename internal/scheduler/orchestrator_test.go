package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/extraction"
	"github.com/driftwatch/driftwatch/internal/ingest"
	"github.com/driftwatch/driftwatch/internal/models"
)

type countingExtractor struct {
	calls   atomic.Int64
	content func(url string) string
	err     error
}

func (c *countingExtractor) Name() string { return "feed" }

func (c *countingExtractor) Supports(p models.Platform) bool { return true }

func (c *countingExtractor) Extract(ctx context.Context, target extraction.Target) (*extraction.Result, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	content := "distinct content for " + target.URL
	if c.content != nil {
		content = c.content(target.URL)
	}
	return &extraction.Result{Content: content, Method: models.ExtractionMethodFeed, ItemsFound: 1}, nil
}

type fixture struct {
	orch     *Orchestrator
	projects *database.MemoryProjectRepository
	sources  *database.MemorySourceRepository
	locks    *database.MemoryScrapeLockRepository
	logs     *database.MemoryScrapeLogRepository
}

func newFixture(t *testing.T, ext extraction.Extractor) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	projects := database.NewMemoryProjectRepository()
	sources := database.NewMemorySourceRepository()
	locks := database.NewMemoryScrapeLockRepository()
	logs := database.NewMemoryScrapeLogRepository()
	ingestions := database.NewMemoryIngestionRepository(nil)

	chain := extraction.NewChain([]extraction.Extractor{ext}, 5, logger)
	svc := ingest.NewService(ingestions, sources, logs, chain, logger)

	cfg := config.ScraperConfig{
		MinWordCount:         5,
		LockTTL:              10 * time.Minute,
		Concurrency:          3,
		ScrapeDelay:          0,
		MaxProjectsPerRun:    5,
		MaxSourcesPerProject: 20,
	}

	return &fixture{
		orch:     NewOrchestrator(projects, sources, locks, svc, cfg, logger),
		projects: projects,
		sources:  sources,
		locks:    locks,
		logs:     logs,
	}
}

func (f *fixture) addProject(t *testing.T, id string, lastRefresh *time.Time) {
	t.Helper()
	f.projects.Put(models.Project{
		ID:                  id,
		Name:                "project " + id,
		RefreshIntervalMins: 60,
		LastRefreshAt:       lastRefresh,
		IsActive:            true,
	})
}

func (f *fixture) addSource(t *testing.T, projectID, sourceID string) {
	t.Helper()
	f.sources.Put(models.Source{
		ID:        sourceID,
		ProjectID: projectID,
		URL:       "https://news.example.com/" + sourceID,
		Platform:  models.PlatformForum,
		IsActive:  true,
	})
}

func TestRunDueScrapesDueProjects(t *testing.T) {
	ext := &countingExtractor{}
	f := newFixture(t, ext)

	recent := time.Now().Add(-10 * time.Minute)
	f.addProject(t, "due", nil)
	f.addProject(t, "fresh", &recent)
	f.addSource(t, "due", "s1")
	f.addSource(t, "due", "s2")
	f.addSource(t, "fresh", "s3")

	summary, err := f.orch.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if summary.ProjectsChecked != 1 || summary.ProjectsRefreshed != 1 {
		t.Errorf("summary = %+v, want 1 checked / 1 refreshed", summary)
	}
	if summary.SourcesScraped != 2 || summary.Successful != 2 {
		t.Errorf("summary = %+v, want 2 sources scraped successfully", summary)
	}
	if got := ext.calls.Load(); got != 2 {
		t.Errorf("extractor calls = %d, want 2", got)
	}

	// Refresh recorded, lock released.
	p, _ := f.projects.GetByID(context.Background(), "due")
	if p.LastRefreshAt == nil {
		t.Error("last refresh not recorded")
	}
	if _, err := f.locks.Get(context.Background(), "due"); !errors.Is(err, database.ErrNotFound) {
		t.Error("lock should be released after the run")
	}
}

func TestRunDueSkipsLockedProject(t *testing.T) {
	ext := &countingExtractor{}
	f := newFixture(t, ext)
	f.addProject(t, "p1", nil)
	f.addSource(t, "p1", "s1")

	if err := f.locks.Acquire(context.Background(), "p1", "other-run", 10*time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	summary, err := f.orch.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if summary.ProjectsRefreshed != 0 || summary.SourcesScraped != 0 {
		t.Errorf("locked project must be skipped, got %+v", summary)
	}
	if summary.ProjectsSkipped != 1 {
		t.Errorf("skipped = %d, want 1", summary.ProjectsSkipped)
	}
	// The skip is non-fatal but still recorded against the project.
	if msgs := summary.Errors["p1"]; len(msgs) != 1 || !strings.Contains(msgs[0], "already in progress") {
		t.Errorf("errors = %+v, want one recorded skip for p1", summary.Errors)
	}
	if ext.calls.Load() != 0 {
		t.Error("no extraction should happen for a locked project")
	}
}

func TestRunDueReclaimsExpiredLock(t *testing.T) {
	ext := &countingExtractor{}
	f := newFixture(t, ext)
	f.addProject(t, "p1", nil)
	f.addSource(t, "p1", "s1")

	// A lock whose TTL already elapsed must not block the run.
	if err := f.locks.Acquire(context.Background(), "p1", "stale-run", -time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	summary, err := f.orch.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if summary.ProjectsRefreshed != 1 {
		t.Errorf("expected expired lock to be reclaimed, got %+v", summary)
	}
}

func TestRunDueCountsFailuresAndKeepsGoing(t *testing.T) {
	ext := &countingExtractor{err: errors.New("host unreachable")}
	f := newFixture(t, ext)
	f.addProject(t, "p1", nil)
	f.addSource(t, "p1", "s1")
	f.addSource(t, "p1", "s2")

	summary, err := f.orch.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if summary.Failed != 2 {
		t.Errorf("failed = %d, want 2", summary.Failed)
	}
	if len(summary.Errors["p1"]) != 2 {
		t.Errorf("errors = %+v, want 2 for p1", summary.Errors)
	}
	// The project still counts as refreshed; a failing source does not stall
	// the whole project forever.
	if summary.ProjectsRefreshed != 1 {
		t.Errorf("refreshed = %d, want 1", summary.ProjectsRefreshed)
	}

	// Every scrape attempt left a terminal failed log.
	for _, log := range f.logs.All() {
		if log.Status != models.ScrapeStatusFailed {
			t.Errorf("log status = %q, want failed", log.Status)
		}
	}
}

func TestRunDueCountsDuplicates(t *testing.T) {
	ext := &countingExtractor{content: func(string) string { return "same content from every source" }}
	f := newFixture(t, ext)
	f.addProject(t, "p1", nil)
	f.addSource(t, "p1", "s1")

	if _, err := f.orch.RunDue(context.Background()); err != nil {
		t.Fatalf("first RunDue: %v", err)
	}

	// Force the project due again.
	past := time.Now().Add(-2 * time.Hour)
	f.addProject(t, "p1", &past)
	f.addSource(t, "p1", "s1")

	summary, err := f.orch.RunDue(context.Background())
	if err != nil {
		t.Fatalf("second RunDue: %v", err)
	}
	if summary.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", summary.Duplicates)
	}
	if summary.Successful != 1 {
		t.Errorf("a duplicate is still a successful check, got %+v", summary)
	}
}

type fakeDetector struct {
	calls  int
	result models.DetectionResult
	err    error
}

func (f *fakeDetector) DetectSignals(ctx context.Context, projectID string, window time.Duration) (models.DetectionResult, error) {
	f.calls++
	if f.err != nil {
		return models.DetectionResult{}, f.err
	}
	return f.result, nil
}

func TestScrapeReportsDetectedSignals(t *testing.T) {
	ext := &countingExtractor{}
	f := newFixture(t, ext)
	f.addProject(t, "p1", nil)
	f.addSource(t, "p1", "s1")

	det := &fakeDetector{result: models.DetectionResult{SignalsDetected: 2}}
	f.orch.SetDetector(det)

	result, err := f.orch.RunProject(context.Background(), "p1")
	if err != nil {
		t.Fatalf("RunProject: %v", err)
	}
	if det.calls != 1 {
		t.Errorf("detector calls = %d, want 1", det.calls)
	}
	if result.SignalsDetected != 2 {
		t.Errorf("SignalsDetected = %d, want 2", result.SignalsDetected)
	}

	// Scheduled runs roll the per-project counts into the summary.
	past := time.Now().Add(-2 * time.Hour)
	f.addProject(t, "p1", &past)
	summary, err := f.orch.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if summary.SignalsDetected != 2 {
		t.Errorf("summary SignalsDetected = %d, want 2", summary.SignalsDetected)
	}
}

func TestScrapeDetectionFailureIsNonFatal(t *testing.T) {
	ext := &countingExtractor{}
	f := newFixture(t, ext)
	f.addProject(t, "p1", nil)
	f.addSource(t, "p1", "s1")
	f.orch.SetDetector(&fakeDetector{err: errors.New("model unavailable")})

	summary, err := f.orch.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	// The scrape itself succeeded; only the analysis tail failed.
	if summary.ProjectsRefreshed != 1 || summary.Successful != 1 {
		t.Errorf("summary = %+v, want a refreshed project", summary)
	}
	if msgs := summary.Errors["p1"]; len(msgs) != 1 || !strings.Contains(msgs[0], "signal detection") {
		t.Errorf("errors = %+v, want the detection failure recorded", summary.Errors)
	}
}

func TestRunDueRejectsInvalidRefreshInterval(t *testing.T) {
	ext := &countingExtractor{}
	f := newFixture(t, ext)
	f.projects.Put(models.Project{
		ID:                  "p1",
		Name:                "bad cadence",
		RefreshIntervalMins: 45,
		IsActive:            true,
	})
	f.addSource(t, "p1", "s1")

	summary, err := f.orch.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if summary.ProjectsRefreshed != 0 {
		t.Errorf("refreshed = %d, want 0", summary.ProjectsRefreshed)
	}
	if msgs := summary.Errors["p1"]; len(msgs) != 1 || !strings.Contains(msgs[0], "invalid refresh interval") {
		t.Errorf("errors = %+v, want an interval rejection for p1", summary.Errors)
	}
	if ext.calls.Load() != 0 {
		t.Error("a misconfigured project must not be scraped")
	}
}

func TestRunDueDelaysBetweenProjects(t *testing.T) {
	ext := &countingExtractor{}
	f := newFixture(t, ext)
	f.orch.cfg.ScrapeDelay = 40 * time.Millisecond
	f.addProject(t, "p1", nil)
	f.addProject(t, "p2", nil)
	f.addSource(t, "p1", "s1")
	f.addSource(t, "p2", "s2")

	start := time.Now()
	summary, err := f.orch.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if summary.ProjectsRefreshed != 2 {
		t.Fatalf("refreshed = %d, want 2", summary.ProjectsRefreshed)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("run finished in %v, want at least one inter-project delay", elapsed)
	}
}

func TestRunProjectIgnoresIntervalButTakesLock(t *testing.T) {
	ext := &countingExtractor{}
	f := newFixture(t, ext)

	// A just-refreshed project is not due, but on-demand runs anyway.
	now := time.Now()
	f.addProject(t, "p1", &now)
	f.addSource(t, "p1", "s1")

	result, err := f.orch.RunProject(context.Background(), "p1")
	if err != nil {
		t.Fatalf("RunProject: %v", err)
	}
	if result.SourcesScraped != 1 || result.Successful != 1 {
		t.Errorf("result = %+v, want one successful source", result)
	}

	// Contended on-demand run surfaces the lock error.
	if err := f.locks.Acquire(context.Background(), "p1", "other", 10*time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := f.orch.RunProject(context.Background(), "p1"); !errors.Is(err, database.ErrLockHeld) {
		t.Errorf("err = %v, want ErrLockHeld", err)
	}
}
