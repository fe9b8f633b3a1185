package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// newSession handles POST /api/session — mints a fresh session id.
// Sessions carry no server-side state beyond corpus scoping, so minting
// is just generating an id the client threads through later requests.
func newSession(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]string{
			"session_id": uuid.NewString(),
		}, logger)
	}
}
