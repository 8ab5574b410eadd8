// Package api provides the HTTP surface of the training daemon: start,
// stop and query training jobs.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/tutu-network/tutu-gym/internal/domain"
	"github.com/tutu-network/tutu-gym/internal/health"
	"github.com/tutu-network/tutu-gym/internal/jobs"
	"github.com/tutu-network/tutu-gym/internal/trainer"
)

// JobService is the part of *jobs.Manager the API drives.
type JobService interface {
	Start(cfg trainer.Config) (domain.JobRecord, error)
	Status() jobs.Status
	Stop() (domain.JobRecord, error)
	Get(id string) (*domain.JobRecord, error)
	List(limit int) ([]domain.JobRecord, error)
}

// HealthReporter is satisfied by *health.Checker.
type HealthReporter interface {
	Statuses() []health.Status
	IsHealthy() bool
}

// Server is the daemon's HTTP API server.
type Server struct {
	jobs           JobService
	defaults       trainer.Config
	health         HealthReporter
	corsOrigins    []string
	metricsEnabled bool
	logger         *slog.Logger
}

// NewServer creates a server. defaults is the training configuration that
// POST /train bodies override.
func NewServer(js JobService, defaults trainer.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		jobs:        js,
		defaults:    defaults,
		corsOrigins: []string{"*"},
		logger:      logger.With("component", "api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth makes /health report the checker's results.
func (s *Server) SetHealth(h HealthReporter) { s.health = h }

// SetCORSOrigins replaces the allowed CORS origins.
func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler)

	r.Get("/health", s.handleHealth)

	r.Post("/train", s.handleTrain)
	r.Post("/train/stop", s.handleStop)
	r.Get("/status", s.handleStatus)

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Get("/{id}", s.handleGetJob)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
