package handlers

import (
	"errors"
	"net/http"

	"jgfinder/internal/events"
	"jgfinder/internal/extensions"
	"jgfinder/internal/finder"
	"jgfinder/internal/logging"
	"jgfinder/internal/siteroute"
)

// ListPlugins returns the installed extensions.
func (h *Handlers) ListPlugins(w http.ResponseWriter, r *http.Request) {
	list, err := h.ext.List(r.Context())
	if err != nil {
		internalError(w, r, "failed to list extensions", err)
		return
	}
	respond(w, r, http.StatusOK, list)
}

type pluginStateRequest struct {
	Value *int `json:"value"`
}

// ChangePluginState enables or disables an extension. Disabling the search
// plugin removes every gallery image from the index.
func (h *Handlers) ChangePluginState(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req pluginStateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Value == nil || (*req.Value != 0 && *req.Value != 1) {
		respondError(w, r, http.StatusBadRequest, "value must be 0 or 1")
		return
	}

	err = h.ext.SetEnabled(r.Context(), id, *req.Value == 1)
	if errors.Is(err, extensions.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "extension not found")
		return
	}
	if err != nil {
		internalError(w, r, "failed to change extension state", err)
		return
	}

	ev := events.StateChange{Context: events.ContextPlugin, PKs: []int64{id}, Value: *req.Value}
	if err := h.events.ChangeState(r.Context(), ev); err != nil {
		internalError(w, r, "failed to update the search index", err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"id": id, "value": *req.Value})
}

// IndexEntry is the search index entry of an image with its taxonomy.
type IndexEntry struct {
	*finder.Link
	Taxonomy []finder.Node `json:"taxonomy"`
}

// GetImageIndexEntry returns the search index entry of an image.
func (h *Handlers) GetImageIndexEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	linkID, err := h.index.LinkIDByURL(r.Context(), siteroute.ImageURL(id))
	if errors.Is(err, finder.ErrLinkNotFound) {
		respondError(w, r, http.StatusNotFound, "image is not indexed")
		return
	}
	if err != nil {
		internalError(w, r, "failed to find index entry", err)
		return
	}

	link, err := h.index.GetLink(r.Context(), linkID)
	if errors.Is(err, finder.ErrLinkNotFound) {
		respondError(w, r, http.StatusNotFound, "image is not indexed")
		return
	}
	if err != nil {
		internalError(w, r, "failed to load index entry", err)
		return
	}
	nodes, err := h.index.LinkTaxonomy(r.Context(), linkID)
	if err != nil {
		internalError(w, r, "failed to load index taxonomy", err)
		return
	}
	if nodes == nil {
		nodes = []finder.Node{}
	}
	respond(w, r, http.StatusOK, IndexEntry{Link: link, Taxonomy: nodes})
}

// DeleteIndexEntry removes a link from the search index.
func (h *Handlers) DeleteIndexEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "linkID")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	_, err = h.index.GetLink(r.Context(), id)
	if errors.Is(err, finder.ErrLinkNotFound) {
		respondError(w, r, http.StatusNotFound, "index entry not found")
		return
	}
	if err != nil {
		internalError(w, r, "failed to load index entry", err)
		return
	}

	if err := h.events.Delete(r.Context(), events.DeleteEvent{Context: events.ContextFinderIndex, ID: id}); err != nil {
		internalError(w, r, "failed to remove index entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TriggerReindex starts a full reindex in the background.
func (h *Handlers) TriggerReindex(w http.ResponseWriter, r *http.Request) {
	if h.indexer.IsIndexing() {
		respondError(w, r, http.StatusConflict, "reindex already in progress")
		return
	}
	logging.Info("Full reindex requested by %s", r.RemoteAddr)
	h.indexer.TriggerIndex()
	respond(w, r, http.StatusAccepted, map[string]string{"status": "started"})
}
