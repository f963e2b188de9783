package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"jgfinder/internal/events"
	"jgfinder/internal/gallery"
)

// GetCategory returns one category.
func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.store.GetCategory(r.Context(), id)
	if errors.Is(err, gallery.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "category not found")
		return
	}
	if err != nil {
		internalError(w, r, "failed to load category", err)
		return
	}
	respond(w, r, http.StatusOK, c)
}

// CreateCategory adds a category below an existing parent, or at the root
// with parentId 0.
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var c gallery.Category
	if err := decodeJSON(w, r, &c); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c.ID = 0
	if strings.TrimSpace(c.Name) == "" {
		respondError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if c.Access == 0 {
		c.Access = 1
	}
	if c.ParentID != 0 && !h.categoryExists(w, r, c.ParentID) {
		return
	}

	ev := events.SaveEvent{Context: events.ContextCategory, Category: &c, IsNew: true}
	err := h.events.Save(r.Context(), ev, func(ctx context.Context) error {
		return h.store.CreateCategory(ctx, &c)
	})
	if err != nil {
		internalError(w, r, "failed to create category", err)
		return
	}
	respond(w, r, http.StatusCreated, c)
}

// UpdateCategory saves changes to a category and cascades visibility and
// access changes to every image below it.
func (h *Handlers) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.store.GetCategory(r.Context(), id)
	if errors.Is(err, gallery.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "category not found")
		return
	}
	if err != nil {
		internalError(w, r, "failed to load category", err)
		return
	}

	oldParent := c.ParentID
	if err := decodeJSON(w, r, c); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c.ID = id
	if c.ParentID == id {
		respondError(w, r, http.StatusBadRequest, "a category cannot be its own parent")
		return
	}
	if c.ParentID != oldParent && c.ParentID != 0 {
		if !h.categoryExists(w, r, c.ParentID) {
			return
		}
		chain, err := h.store.CategoryChain(r.Context(), c.ParentID)
		if err != nil {
			internalError(w, r, "failed to load category tree", err)
			return
		}
		for _, anc := range chain {
			if anc.ID == id {
				respondError(w, r, http.StatusBadRequest, "a category cannot move below its own descendant")
				return
			}
		}
	}

	ev := events.SaveEvent{Context: events.ContextCategory, Category: c}
	err = h.events.Save(r.Context(), ev, func(ctx context.Context) error {
		return h.store.UpdateCategory(ctx, c)
	})
	if err != nil {
		internalError(w, r, "failed to save category", err)
		return
	}
	respond(w, r, http.StatusOK, c)
}

type categoryStateRequest struct {
	IDs   []int64 `json:"ids"`
	Value *int    `json:"value"`
}

// ChangeCategoryState publishes or unpublishes categories.
func (h *Handlers) ChangeCategoryState(w http.ResponseWriter, r *http.Request) {
	var req categoryStateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.IDs) == 0 || req.Value == nil {
		respondError(w, r, http.StatusBadRequest, "ids and value are required")
		return
	}

	if err := h.store.SetCategoriesPublished(r.Context(), req.IDs, *req.Value); err != nil {
		internalError(w, r, "failed to change category state", err)
		return
	}

	ev := events.CategoryStateChange{Extension: events.Extension, PKs: req.IDs, Value: *req.Value}
	if err := h.events.CategoryChangeState(r.Context(), ev); err != nil {
		internalError(w, r, "failed to update the search index", err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"ids": req.IDs, "value": *req.Value})
}
