package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/driftwatch/driftwatch/internal/analysis"
	"github.com/driftwatch/driftwatch/internal/metrics"
	"github.com/driftwatch/driftwatch/internal/scheduler"
)

// SetupRoutes wires the API onto a mux. The returned handler carries HTTP
// metrics instrumentation when a collector is provided.
func SetupRoutes(
	mux *http.ServeMux,
	db *sql.DB,
	orchestrator *scheduler.Orchestrator,
	engine *analysis.Engine,
	collector *metrics.Collector,
	logger *slog.Logger,
) http.Handler {
	handler := NewHandler(db, orchestrator, engine, logger)

	mux.HandleFunc("/api/health", handler.HealthHandler)
	mux.HandleFunc("/api/scrape/run", handler.ScrapeRunHandler)
	mux.HandleFunc("/api/scrape/project", handler.ScrapeProjectHandler)
	mux.HandleFunc("/api/analysis/detect", handler.DetectHandler)
	mux.HandleFunc("/api/analysis/momentum", handler.MomentumHandler)
	mux.HandleFunc("/api/analysis/pipeline", handler.PipelineHandler)

	if collector == nil {
		return mux
	}
	mux.Handle("/metrics", collector.Handler())
	return collector.InstrumentHandler(mux)
}
