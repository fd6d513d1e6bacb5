package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/eyetrack/internal/store"
)

// SessionHandler handles HTTP requests for recorded tracking sessions.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes requests to the appropriate method.
// Expected paths: /api/sessions, /api/sessions/{id} and /api/sessions/{id}/samples
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.list(w, r)
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.get(w, r, id)
	case rest == "" && r.Method == http.MethodDelete:
		h.delete(w, r, id)
	case rest == "samples" && r.Method == http.MethodGet:
		h.samples(w, r, id)
	case rest == "summary" && r.Method == http.MethodGet:
		h.summary(w, r, id)
	case rest == "" || rest == "samples" || rest == "summary":
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// samples handles GET /api/sessions/{id}/samples.
func (h *SessionHandler) samples(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	samples, err := h.store.Samples().GetBySessionID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get samples")
		return
	}
	if samples == nil {
		samples = []store.Sample{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"samples":    samples,
	})
}

// summary handles GET /api/sessions/{id}/summary.
func (h *SessionHandler) summary(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	samples, err := h.store.Samples().GetBySessionID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get samples")
		return
	}
	writeJSON(w, http.StatusOK, store.Summarize(id, samples))
}
