package handlers

import (
	"net/http"
)

// Health is the liveness probe for the on-device agent process. It reports
// nothing about connectivity or queue depth; the UI reads those from /state.
func Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "fieldsync-agent",
	})
}
