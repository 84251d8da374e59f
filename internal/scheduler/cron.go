package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/driftwatch/driftwatch/internal/config"
)

// CronTrigger invokes the orchestrator on a fixed schedule.
type CronTrigger struct {
	cron         *cron.Cron
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewCronTrigger wires the orchestrator to a cron schedule. The returned
// trigger is not started.
func NewCronTrigger(orchestrator *Orchestrator, cfg config.SchedulerConfig, logger *slog.Logger) (*CronTrigger, error) {
	t := &CronTrigger{
		cron:         cron.New(),
		orchestrator: orchestrator,
		logger:       logger,
	}

	if _, err := t.cron.AddFunc(cfg.CronSpec, t.run); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", cfg.CronSpec, err)
	}
	return t, nil
}

// Start begins schedule evaluation in the background.
func (t *CronTrigger) Start() {
	t.logger.Info("scrape scheduler started")
	t.cron.Start()
}

// Stop halts the schedule and waits for a running job to finish.
func (t *CronTrigger) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	t.logger.Info("scrape scheduler stopped")
}

func (t *CronTrigger) run() {
	if _, err := t.orchestrator.RunDue(context.Background()); err != nil {
		t.logger.Error("scheduled scrape run failed", "error", err)
	}
}
