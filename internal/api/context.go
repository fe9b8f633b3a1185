package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GengGao/hackathon-agent/internal/rules"
)

// maxContextBody caps pasted-text payloads.
const maxContextBody = 1 << 20

// contextHandler holds dependencies for the corpus management endpoints.
type contextHandler struct {
	store  RuleStore
	engine Retriever
	logger *slog.Logger
}

type addTextRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

// contextItem is the listing shape of one corpus row.
type contextItem struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Filename  string    `json:"filename,omitempty"`
	Length    int       `json:"length"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// addText handles POST /api/context/text — stores pasted text in the
// session's corpus and rebuilds the index synchronously.
func (h *contextHandler) addText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxContextBody)

	var req addTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "empty_text", "text must not be empty", h.logger)
		return
	}

	id, err := h.store.Add(r.Context(), rules.SourceText, "", req.Text, req.SessionID)
	if err != nil {
		h.logger.Error("adding context text", "error", err, "session_id", req.SessionID)
		writeError(w, http.StatusInternalServerError, "add_failed", "failed to store context", h.logger)
		return
	}

	h.engine.SetSession(req.SessionID)
	indexed := true
	if _, err := h.engine.Rebuild(r.Context(), false); err != nil {
		// Row is persisted; index catches up on the next rebuild.
		h.logger.Warn("index rebuild after text add failed", "error", err, "rule_id", id)
		indexed = false
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":      true,
		"id":      id,
		"indexed": indexed,
		"chunks":  h.engine.ChunkCount(),
	}, h.logger)
}

// list handles GET /api/rules-context — returns the raw active rows
// visible to the session plus the current indexed chunk count.
func (h *contextHandler) list(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	docs, err := h.store.List(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("listing context", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list context", h.logger)
		return
	}

	items := make([]contextItem, len(docs))
	for i, d := range docs {
		items[i] = contextItem{
			ID:        d.ID,
			Source:    d.Source,
			Filename:  d.Filename,
			Length:    len(d.Content),
			SessionID: d.SessionID,
			CreatedAt: d.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  len(items),
		"chunks": h.engine.ChunkCount(),
	}, h.logger)
}

// remove handles DELETE /api/context/{id} — soft-deletes a row and
// rebuilds the index.
func (h *contextHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid context row id", h.logger)
		return
	}

	if err := h.store.Deactivate(r.Context(), id); err != nil {
		h.logger.Error("deactivating context row", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to remove context", h.logger)
		return
	}

	h.engine.SetSession(r.URL.Query().Get("session_id"))
	if _, err := h.engine.Rebuild(r.Context(), false); err != nil {
		h.logger.Warn("index rebuild after delete failed", "error", err, "id", id)
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true}, h.logger)
}

// clear handles DELETE /api/rules-context — soft-deletes every row
// scoped to the session and rebuilds. Global rows stay.
func (h *contextHandler) clear(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session", "session_id is required", h.logger)
		return
	}

	if err := h.store.ClearSession(r.Context(), sessionID); err != nil {
		h.logger.Error("clearing session context", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "clear_failed", "failed to clear session context", h.logger)
		return
	}

	h.engine.SetSession(sessionID)
	if _, err := h.engine.Rebuild(r.Context(), false); err != nil {
		h.logger.Warn("index rebuild after clear failed", "error", err, "session_id", sessionID)
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true}, h.logger)
}

// status handles GET /api/rules-context/status. Readiness is reported
// for the requested session; a session whose index is neither ready nor
// building gets a forced rebuild kicked off in the background, and the
// response reports it as building so clients keep polling.
func (h *contextHandler) status(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	st := h.engine.StatusScoped(sessionID)
	if !st.Ready && !st.Building {
		// The request context dies with this response; the rebuild must
		// outlive it.
		go func() {
			if _, err := h.engine.Rebuild(context.Background(), true); err != nil {
				h.logger.Warn("background index rebuild failed",
					"error", err, "session_id", sessionID)
			}
		}()
		st.Building = true
	}

	writeJSON(w, http.StatusOK, st, h.logger)
}
