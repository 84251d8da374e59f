package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/driftwatch/driftwatch/internal/analysis"
	"github.com/driftwatch/driftwatch/internal/api"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/evidence"
	"github.com/driftwatch/driftwatch/internal/extraction"
	"github.com/driftwatch/driftwatch/internal/ingest"
	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/metrics"
	"github.com/driftwatch/driftwatch/internal/scheduler"
	"github.com/driftwatch/driftwatch/internal/server"
	"github.com/driftwatch/driftwatch/internal/usage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting driftwatch")

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(db, cfg.Database.MigrationsDir, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	projectRepo := database.NewPostgresProjectRepository(db)
	sourceRepo := database.NewPostgresSourceRepository(db)
	ingestionRepo := database.NewPostgresIngestionRepository(db)
	scrapeLogRepo := database.NewPostgresScrapeLogRepository(db)
	lockRepo := database.NewPostgresScrapeLockRepository(db)
	signalRepo := database.NewPostgresSignalRepository(db)
	evidenceRepo := database.NewPostgresEvidenceRepository(db)
	usageRepo := database.NewPostgresUsageRepository(db)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	// Extraction chain, cheapest tier first.
	chain := extraction.NewChain([]extraction.Extractor{
		extraction.NewFeedExtractor(cfg.Scraper.RequestTimeout),
		extraction.NewForumExtractor(cfg.Scraper.RequestTimeout),
		extraction.NewArticleExtractor(cfg.Scraper.RequestTimeout),
		extraction.NewBrowserExtractor(extraction.BrowserConfig{
			BinPath:           cfg.Scraper.BrowserBinPath,
			Hosted:            cfg.Scraper.Hosted,
			NavigationTimeout: cfg.Scraper.RequestTimeout,
			SelectorTimeout:   cfg.Scraper.SelectorTimeout,
			ScrollCount:       cfg.Scraper.ScrollCount,
			ScrollDelay:       cfg.Scraper.ScrollDelay,
		}, logger),
	}, cfg.Scraper.MinWordCount, logger)
	chain.SetObserver(collector)

	ingestService := ingest.NewService(ingestionRepo, sourceRepo, scrapeLogRepo, chain, logger)

	orchestrator := scheduler.NewOrchestrator(projectRepo, sourceRepo, lockRepo, ingestService, cfg.Scraper, logger)
	orchestrator.SetObserver(collector)

	engine := analysis.NewEngine(
		projectRepo,
		ingestionRepo,
		signalRepo,
		evidence.NewLinker(evidenceRepo, logger),
		usage.NewLedger(usageRepo, logger),
		analysis.NewOpenAIClient(cfg.OpenAI),
		cfg.Analysis,
		logger,
	)
	engine.SetObserver(collector)
	orchestrator.SetDetector(engine)

	var trigger *scheduler.CronTrigger
	if cfg.Scheduler.Enabled {
		trigger, err = scheduler.NewCronTrigger(orchestrator, cfg.Scheduler, logger)
		if err != nil {
			logger.Error("failed to init scheduler", "error", err)
			os.Exit(1)
		}
		trigger.Start()
	}

	mux := http.NewServeMux()
	handler := api.SetupRoutes(mux, db, orchestrator, engine, collector, logger)
	srv := server.New(cfg.Server, logger, handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	case sig := <-stop:
		logger.Info("received signal", "signal", sig.String())
	}

	if trigger != nil {
		trigger.Stop()
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("driftwatch stopped")
}
