package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/reroller/internal/app"
)

// Controller is the part of the reroll loop exposed over HTTP.
type Controller interface {
	Status() app.Status
	SetPaused(paused bool)
}

// StatusHandler serves the loop state on /api/status.
// GET returns the status; PUT with {"paused": bool} pauses or resumes.
type StatusHandler struct {
	ctl Controller
}

// NewStatusHandler creates a new StatusHandler for ctl.
func NewStatusHandler(ctl Controller) *StatusHandler {
	return &StatusHandler{ctl: ctl}
}

type updateStatusRequest struct {
	Paused *bool `json:"paused"`
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.ctl.Status())
	case http.MethodPut:
		var req updateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Paused == nil {
			writeError(w, http.StatusBadRequest, "paused is required")
			return
		}
		h.ctl.SetPaused(*req.Paused)
		writeJSON(w, http.StatusOK, h.ctl.Status())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
