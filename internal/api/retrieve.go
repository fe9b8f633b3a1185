package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// maxRetrieveBody caps retrieval request payloads.
const maxRetrieveBody = 64 << 10

// retrieveHandler holds dependencies for the retrieval endpoint.
type retrieveHandler struct {
	engine Retriever
	logger *slog.Logger
}

type retrieveRequest struct {
	Query     string `json:"query"`
	K         int    `json:"k"`
	SessionID string `json:"session_id"`
}

// retrieve handles POST /api/retrieve — embeds the query and returns the
// top-k corpus chunks ranked by similarity.
func (h *retrieveHandler) retrieve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRetrieveBody)

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "empty_query", "query must not be empty", h.logger)
		return
	}

	h.engine.SetSession(req.SessionID)

	matches, err := h.engine.Retrieve(r.Context(), req.Query, req.K)
	if err != nil {
		h.logger.Error("retrieval failed", "error", err, "session_id", req.SessionID)
		writeError(w, http.StatusBadGateway, "retrieval_failed", "failed to run retrieval", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	}, h.logger)
}
