// Package scheduler coordinates scrape runs: which projects are due, the
// per-project lock, and the bounded worker pool over each project's sources.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/ingest"
	"github.com/driftwatch/driftwatch/internal/models"
)

// RunObserver receives per-project scrape outcomes. The metrics collector
// implements this.
type RunObserver interface {
	ObserveProjectScrape(result models.ProjectScrapeResult)
}

// SignalDetector runs signal detection over a project's fresh content after
// a scrape. The analysis engine implements this.
type SignalDetector interface {
	DetectSignals(ctx context.Context, projectID string, window time.Duration) (models.DetectionResult, error)
}

// Orchestrator runs scrape cycles. At most one live scrape per project is
// guaranteed by the lock repository; the orchestrator itself is stateless
// and safe to invoke from both the cron trigger and on-demand requests.
type Orchestrator struct {
	projects database.ProjectRepository
	sources  database.SourceRepository
	locks    database.ScrapeLockRepository
	ingester *ingest.Service
	cfg      config.ScraperConfig
	logger   *slog.Logger
	observer RunObserver
	detector SignalDetector
}

// NewOrchestrator creates a scrape orchestrator.
func NewOrchestrator(
	projects database.ProjectRepository,
	sources database.SourceRepository,
	locks database.ScrapeLockRepository,
	ingester *ingest.Service,
	cfg config.ScraperConfig,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		projects: projects,
		sources:  sources,
		locks:    locks,
		ingester: ingester,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetObserver attaches a run observer. Nil disables observation.
func (o *Orchestrator) SetObserver(obs RunObserver) {
	o.observer = obs
}

// SetDetector attaches post-scrape signal detection. Nil disables it and
// scrape results report zero detected signals.
func (o *Orchestrator) SetDetector(det SignalDetector) {
	o.detector = det
}

// RunDue scrapes every project whose refresh interval has elapsed, up to the
// per-run project cap. Lock contention on a project is a soft skip recorded
// in the summary, not a run failure: the holder is already doing the work.
func (o *Orchestrator) RunDue(ctx context.Context) (models.ScrapeRunSummary, error) {
	start := time.Now()
	summary := models.ScrapeRunSummary{Errors: map[string][]string{}}

	due, err := o.projects.ListDue(ctx, start, o.cfg.MaxProjectsPerRun)
	if err != nil {
		return summary, fmt.Errorf("listing due projects: %w", err)
	}
	summary.ProjectsChecked = len(due)

	for i, project := range due {
		if i > 0 && o.cfg.ScrapeDelay > 0 {
			// Projects get the same breathing room between starts as
			// sources do within one.
			select {
			case <-time.After(o.cfg.ScrapeDelay):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			break
		}

		if !models.IsAllowedRefreshInterval(project.RefreshIntervalMins) {
			summary.Errors[project.ID] = append(summary.Errors[project.ID],
				fmt.Sprintf("invalid refresh interval %d minutes", project.RefreshIntervalMins))
			continue
		}

		result, err := o.scrapeProject(ctx, project)
		if err != nil {
			if errors.Is(err, database.ErrLockHeld) {
				o.logger.Info("project locked by another run, skipping",
					"project_id", project.ID,
				)
				summary.ProjectsSkipped++
				summary.Errors[project.ID] = append(summary.Errors[project.ID],
					"skipped: scrape already in progress")
				continue
			}
			summary.Errors[project.ID] = append(summary.Errors[project.ID], err.Error())
			continue
		}

		summary.ProjectsRefreshed++
		summary.SourcesScraped += result.SourcesScraped
		summary.Successful += result.Successful
		summary.Failed += result.Failed
		summary.Duplicates += result.Duplicates
		summary.SignalsDetected += result.SignalsDetected
		if len(result.Errors) > 0 {
			summary.Errors[project.ID] = append(summary.Errors[project.ID], result.Errors...)
		}
	}

	summary.ExecutionTimeMs = time.Since(start).Milliseconds()
	o.logger.Info("scrape run complete",
		"projects_checked", summary.ProjectsChecked,
		"projects_refreshed", summary.ProjectsRefreshed,
		"projects_skipped", summary.ProjectsSkipped,
		"sources_scraped", summary.SourcesScraped,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed,
		"signals_detected", summary.SignalsDetected,
		"execution_time_ms", summary.ExecutionTimeMs,
	)
	return summary, nil
}

// RunProject scrapes one project on demand. The refresh interval is ignored
// but the lock still applies; an on-demand refresh must not overlap a
// scheduled one.
func (o *Orchestrator) RunProject(ctx context.Context, projectID string) (models.ProjectScrapeResult, error) {
	project, err := o.projects.GetByID(ctx, projectID)
	if err != nil {
		return models.ProjectScrapeResult{ProjectID: projectID}, fmt.Errorf("loading project: %w", err)
	}
	return o.scrapeProject(ctx, *project)
}

func (o *Orchestrator) scrapeProject(ctx context.Context, project models.Project) (models.ProjectScrapeResult, error) {
	start := time.Now()
	result := models.ProjectScrapeResult{ProjectID: project.ID}

	execID := uuid.NewString()
	if err := o.locks.Acquire(ctx, project.ID, execID, o.cfg.LockTTL); err != nil {
		if errors.Is(err, database.ErrLockHeld) {
			return result, fmt.Errorf("project %s: %w", project.ID, database.ErrLockHeld)
		}
		return result, fmt.Errorf("acquiring lock for project %s: %w", project.ID, err)
	}

	defer func() {
		if err := o.locks.Release(ctx, project.ID, execID); err != nil {
			o.logger.Error("failed to release scrape lock",
				"project_id", project.ID,
				"locked_by", execID,
				"error", err,
			)
		}
		if err := o.projects.UpdateLastRefresh(ctx, project.ID, time.Now()); err != nil {
			o.logger.Error("failed to update last refresh",
				"project_id", project.ID,
				"error", err,
			)
		}
	}()

	sources, err := o.sources.ListActiveByProject(ctx, project.ID, o.cfg.MaxSourcesPerProject)
	if err != nil {
		return result, fmt.Errorf("listing sources for project %s: %w", project.ID, err)
	}

	o.logger.Info("scraping project",
		"project_id", project.ID,
		"project_name", project.Name,
		"sources", len(sources),
	)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	sem := make(chan struct{}, o.cfg.Concurrency)

	for i, source := range sources {
		if i > 0 && o.cfg.ScrapeDelay > 0 {
			// Spread request starts so a project's sources do not hammer
			// their hosts simultaneously.
			select {
			case <-time.After(o.cfg.ScrapeDelay):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			mu.Lock()
			result.Errors = append(result.Errors, "run cancelled: "+ctx.Err().Error())
			mu.Unlock()
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(src models.Source) {
			defer wg.Done()
			defer func() { <-sem }()

			saved, err := o.ingester.ScrapeSource(ctx, src)

			mu.Lock()
			defer mu.Unlock()
			result.SourcesScraped++
			switch {
			case err != nil:
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("source %s: %v", src.ID, err))
			case saved.Duplicate:
				result.Successful++
				result.Duplicates++
			default:
				result.Successful++
			}
		}(source)
	}
	wg.Wait()

	if o.detector != nil && ctx.Err() == nil {
		det, err := o.detector.DetectSignals(ctx, project.ID, 0)
		if err != nil {
			o.logger.Error("post-scrape signal detection failed",
				"project_id", project.ID,
				"error", err,
			)
			result.Errors = append(result.Errors, "signal detection: "+err.Error())
		}
		result.SignalsDetected = det.SignalsDetected
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	if o.observer != nil {
		o.observer.ObserveProjectScrape(result)
	}
	return result, nil
}
