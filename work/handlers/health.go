package handlers

import (
	"net/http"
)

// Health reports service liveness plus basic store statistics. A database
// that cannot answer the stats query degrades the status without failing
// the endpoint, so load balancers still see the process as up.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	stats, err := h.DB.GetStats()
	if err != nil {
		h.Log.Warn("{handlers - Health} failed to collect database stats: %v", err)
		status = "degraded"
		stats = map[string]interface{}{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"database": stats,
	})
}
