// Package api provides HTTP API handlers for the reroller status surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/reroller/internal/store"
)

// SessionHandler handles HTTP requests for reroll session history.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes /api/sessions and /api/sessions/{id}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type listSessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

type listAttemptsResponse struct {
	SessionID string           `json:"session_id"`
	Attempts  []*store.Attempt `json:"attempts"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/sessions and returns all sessions, newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}

	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions})
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

// delete handles DELETE /api/sessions/{id} and removes the session with its attempts.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Sessions().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AttemptHandler serves GET /api/attempts?session={id}&limit={n}.
// Without a session parameter the most recent session is used.
type AttemptHandler struct {
	store *store.Store
}

// NewAttemptHandler creates a new AttemptHandler with the given store.
func NewAttemptHandler(s *store.Store) *AttemptHandler {
	return &AttemptHandler{store: s}
}

func (h *AttemptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessions, err := h.store.Sessions().List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list sessions")
			return
		}
		if len(sessions) == 0 {
			writeError(w, http.StatusNotFound, "No sessions recorded")
			return
		}
		sessionID = sessions[0].ID
	} else if _, err := h.store.Sessions().GetByID(sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	attempts, err := h.store.Attempts().ListBySession(sessionID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list attempts")
		return
	}
	if attempts == nil {
		attempts = []*store.Attempt{}
	}

	writeJSON(w, http.StatusOK, listAttemptsResponse{SessionID: sessionID, Attempts: attempts})
}
