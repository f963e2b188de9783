package handlers

import (
	"net/http"

	"jgfinder/internal/session"
)

type accessRequest struct {
	Level int `json:"level"`
}

// GetAccess returns the viewer's access level.
func (h *Handlers) GetAccess(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, accessRequest{Level: h.sessions.AccessLevel(r)})
}

// SetAccess stores the viewer's access level in the session cookie.
func (h *Handlers) SetAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Level < session.GuestAccess {
		respondError(w, r, http.StatusBadRequest, "level must be at least 1")
		return
	}
	if err := h.sessions.SetAccessLevel(w, r, req.Level); err != nil {
		internalError(w, r, "failed to save session", err)
		return
	}
	respond(w, r, http.StatusOK, req)
}
