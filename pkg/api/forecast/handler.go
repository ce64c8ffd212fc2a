// Package forecast exposes the forecast pipeline over HTTP.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"forecast_agent/pkg/core/logger"
	"forecast_agent/pkg/core/store"
	"forecast_agent/pkg/models"
)

const maxBodyBytes = 1 << 20

// Generator runs one forecast.
type Generator interface {
	Generate(ctx context.Context, task string) *models.ForecastRun
}

// RunLister reads the run history.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]models.RunSummary, error)
	Get(ctx context.Context, id int64) (*models.ForecastRun, error)
}

// Handler holds dependencies for the forecast endpoints
type Handler struct {
	Generator Generator
	Runs      RunLister
	Service   string
	Database  string        // reported by /health, e.g. "postgres" or "memory"
	Provider  func() string // active LLM provider name
	validate  *validator.Validate
	now       func() time.Time
}

// NewHandler creates a new forecast handler
func NewHandler(gen Generator, runs RunLister, provider func() string, database string) *Handler {
	return &Handler{
		Generator: gen,
		Runs:      runs,
		Service:   "Financial Forecasting Agent",
		Database:  database,
		Provider:  provider,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/forecast", h.HandleForecast)
	mux.HandleFunc("/logs", h.HandleLogs)
	mux.HandleFunc("/logs/{id}", h.HandleLog)
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/", h.HandleRoot)
}

func setCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// HandleForecast runs the pipeline for {"task": "..."}. A run whose synthesis
// failed is answered with 502 and the same body shape.
func (h *Handler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.ForecastRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	req.Task = strings.TrimSpace(req.Task)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	run := h.Generator.Generate(r.Context(), req.Task)

	resp := models.ForecastResponse{
		Status:               run.Status,
		Timestamp:            h.now().UTC(),
		ExecutionTimeSeconds: run.ExecutionTimeSeconds,
		ToolsUsed:            run.ToolsUsed,
		LogID:                run.ID,
	}
	if run.Forecast != nil {
		resp.Forecast = *run.Forecast
	}
	resp.Forecast.Normalize()

	status := http.StatusOK
	if run.Status == models.StatusError {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

// HandleLogs lists recent runs, newest first. ?limit=N, default 10.
func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "GET, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := store.DefaultLogLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	if h.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not available")
		return
	}
	logs, err := h.Runs.Recent(r.Context(), limit)
	if err != nil {
		logger.Log.Errorf("failed to list runs: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(logs),
		"logs":  logs,
	})
}

// HandleLog returns one full run, forecast included.
func (h *Handler) HandleLog(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "GET, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "log id must be a positive integer")
		return
	}
	if h.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not available")
		return
	}

	run, err := h.Runs.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("log %d not found", id))
		return
	case err != nil:
		logger.Log.Errorf("failed to load run %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleHealth reports liveness with dependency details.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "GET, OPTIONS")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"timestamp":    h.now().UTC(),
		"database":     h.Database,
		"llm_provider": h.providerName(),
	})
}

// HandleRoot is the service banner.
func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	setCORS(w, "GET, OPTIONS")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"service":      h.Service,
		"llm_provider": h.providerName(),
	})
}

func (h *Handler) providerName() string {
	if h.Provider == nil {
		return ""
	}
	return h.Provider()
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	case "min", "max":
		return fmt.Sprintf("%s length must satisfy %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", strings.ToLower(fe.Field()), fe.Tag())
}
