package status

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simonaseno/nhanes/pkg/metrics"
)

// MetricsHandler exposes the Prometheus registry.
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler creates a handler backed by the pipeline registry.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{
		handler: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleMetrics serves metrics in Prometheus exposition format.
func (h *MetricsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}
