// Package status declares the HTTP surface exposing pipeline health,
// Prometheus metrics, and the state of the current run.
package status

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/simonaseno/nhanes/pkg/logger"
)

// StatsProvider defines the interface for getting run statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Server wires HTTP routes for the status surface.
type Server struct {
	healthHandler  *HealthHandler
	metricsHandler *MetricsHandler
	runsHandler    *RunsHandler
}

// NewServer creates a new status server with all handlers.
func NewServer(statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		metricsHandler: NewMetricsHandler(),
		runsHandler:    NewRunsHandler(statsProvider),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.metricsHandler.HandleMetrics)
	mux.HandleFunc("/runs/current", MetricsMiddleware(s.runsHandler.HandleCurrentRun, "runs"))
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Get().Error(ctx, "failed to encode response", logger.Error(err))
	}
}
