package status

import (
	"net/http"
)

// HealthHandler reports process liveness.
type HealthHandler struct{}

// NewHealthHandler creates a new health check handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HandleHealth responds with a static ok payload. The process is healthy
// as long as it can serve this route; run progress lives under /runs.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}
