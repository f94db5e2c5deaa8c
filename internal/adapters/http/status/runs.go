package status

import (
	"net/http"
)

// RunsHandler serves statistics about the current pipeline run.
type RunsHandler struct {
	statsProvider StatsProvider
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(statsProvider StatsProvider) *RunsHandler {
	return &RunsHandler{statsProvider: statsProvider}
}

// HandleCurrentRun returns a snapshot of the current run as JSON.
func (h *RunsHandler) HandleCurrentRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	stats := h.statsProvider.GetStats()
	writeJSON(r.Context(), w, http.StatusOK, stats)
}
