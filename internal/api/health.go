package api

import (
	"log/slog"
	"net/http"
)

// health is a simple liveness endpoint for local tooling and probes.
// Returns 200 OK with {"status":"ok"}.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, slog.Default())
}
