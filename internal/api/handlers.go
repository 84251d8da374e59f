// Package api exposes the pipeline entry points over JSON HTTP. Handlers
// are a thin layer: decode, delegate, encode.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/driftwatch/driftwatch/internal/analysis"
	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/scheduler"
)

// Handler serves the pipeline API.
type Handler struct {
	db           *sql.DB
	orchestrator *scheduler.Orchestrator
	engine       *analysis.Engine
	logger       *slog.Logger
	startTime    time.Time
}

// NewHandler creates the API handler.
func NewHandler(db *sql.DB, orchestrator *scheduler.Orchestrator, engine *analysis.Engine, logger *slog.Logger) *Handler {
	return &Handler{
		db:           db,
		orchestrator: orchestrator,
		engine:       engine,
		logger:       logger,
		startTime:    time.Now(),
	}
}

type projectRequest struct {
	ProjectID string `json:"project_id"`
	HoursBack int    `json:"hours_back,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HealthHandler handles GET /api/health.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "ok"
	code := http.StatusOK
	if err := database.HealthCheck(r.Context(), h.db); err != nil {
		h.logger.Error("health check failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":         status,
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	}, h.logger)
}

// ScrapeRunHandler handles POST /api/scrape/run: scrape every due project.
func (h *Handler) ScrapeRunHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := h.orchestrator.RunDue(r.Context())
	if err != nil {
		h.logger.Error("scrape run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, summary, h.logger)
}

// ScrapeProjectHandler handles POST /api/scrape/project: on-demand refresh
// of one project, interval ignored.
func (h *Handler) ScrapeProjectHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProjectRequest(w, r)
	if !ok {
		return
	}

	result, err := h.orchestrator.RunProject(r.Context(), req.ProjectID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrLockHeld):
			writeJSON(w, http.StatusConflict, errorResponse{Error: "a scrape is already running for this project"}, h.logger)
		case errors.Is(err, database.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "project not found"}, h.logger)
		default:
			h.logger.Error("on-demand scrape failed", "project_id", req.ProjectID, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()}, h.logger)
		}
		return
	}
	writeJSON(w, http.StatusOK, result, h.logger)
}

// DetectHandler handles POST /api/analysis/detect.
func (h *Handler) DetectHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProjectRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.DetectSignals(r.Context(), req.ProjectID, hoursToDuration(req.HoursBack))
	if err != nil {
		h.logger.Error("detection failed", "project_id", req.ProjectID, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, result, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, result, h.logger)
}

// MomentumHandler handles POST /api/analysis/momentum.
func (h *Handler) MomentumHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProjectRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.AnalyzeMomentum(r.Context(), req.ProjectID, hoursToDuration(req.HoursBack))
	if err != nil {
		h.logger.Error("momentum analysis failed", "project_id", req.ProjectID, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, result, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, result, h.logger)
}

// PipelineHandler handles POST /api/analysis/pipeline: detection then
// momentum with partial-success semantics. Always 200; stage failures are
// reported in the body.
func (h *Handler) PipelineHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProjectRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.RunPipeline(r.Context(), req.ProjectID)
	if err != nil {
		h.logger.Error("pipeline failed", "project_id", req.ProjectID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, result, h.logger)
}

func (h *Handler) decodeProjectRequest(w http.ResponseWriter, r *http.Request) (projectRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return projectRequest{}, false
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"}, h.logger)
		return projectRequest{}, false
	}
	if req.ProjectID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "project_id is required"}, h.logger)
		return projectRequest{}, false
	}
	return req, true
}

func hoursToDuration(hours int) time.Duration {
	if hours <= 0 {
		return 0
	}
	return time.Duration(hours) * time.Hour
}

func writeJSON(w http.ResponseWriter, code int, payload any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
