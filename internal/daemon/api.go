package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"scriptcheck/internal/logging"
	"scriptcheck/internal/metrics"
	"scriptcheck/internal/services"
	"scriptcheck/internal/stage"
)

type healthResponse struct {
	Ready  bool           `json:"ready"`
	Stages []stage.Health `json:"stages"`
}

func (d *Daemon) newAPIServer() *http.Server {
	router := chi.NewRouter()
	router.Use(middleware.RealIP, middleware.Recoverer, middleware.Timeout(30*time.Second))

	router.Get("/healthz", d.handleHealth)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	router.Get("/api/v1/jobs/{interviewID}", d.handleGetJob)

	return &http.Server{
		Addr:         d.cfg.Workflow.APIBind,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := healthResponse{Ready: true}
	for _, handler := range d.stages {
		health := handler.HealthCheck(ctx)
		response.Stages = append(response.Stages, health)
		if !health.Ready {
			response.Ready = false
		}
	}

	status := http.StatusOK
	if !response.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func (d *Daemon) handleGetJob(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "interviewID")

	job, err := d.store.Get(r.Context(), interviewID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "interview not found"})
			return
		}
		d.logger.Error("job lookup failed",
			logging.String(logging.FieldInterviewID, interviewID),
			logging.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ledger unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
