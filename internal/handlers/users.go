package handlers

import (
	"errors"
	"net/http"
	"strings"

	"jgfinder/internal/gallery"
)

// CreateUser adds a site user that images can name as their owner.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var u gallery.User
	if err := decodeJSON(w, r, &u); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u.ID = 0
	u.Name = strings.TrimSpace(u.Name)
	u.Username = strings.TrimSpace(u.Username)
	if u.Name == "" || u.Username == "" {
		respondError(w, r, http.StatusBadRequest, "name and username are required")
		return
	}

	err := h.store.CreateUser(r.Context(), &u)
	if errors.Is(err, gallery.ErrDuplicate) {
		respondError(w, r, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		internalError(w, r, "failed to create user", err)
		return
	}
	respond(w, r, http.StatusCreated, u)
}
