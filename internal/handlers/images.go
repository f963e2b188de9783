package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"jgfinder/internal/events"
	"jgfinder/internal/gallery"
	"jgfinder/internal/logging"
	"jgfinder/internal/siteroute"
	"jgfinder/internal/visibility"
)

// Image state tasks accepted by ChangeImageState.
var imageTasks = map[string]struct {
	task  string
	field string
	value int
}{
	"publish":   {events.TaskPublish, "published", 1},
	"unpublish": {events.TaskPublish, "published", 0},
	"approve":   {events.TaskApprove, "approved", 1},
	"reject":    {events.TaskApprove, "approved", -1},
}

// ImageDetail is the public view of one image.
type ImageDetail struct {
	gallery.Image
	Category string `json:"category"`
	URL      string `json:"url"`
	Route    string `json:"route"`
}

// ListImages returns the published images visible to the viewer. With
// search set, the listing is narrowed to the images the search index
// returns for the query, or to all other images with exclude=true.
func (h *Handlers) ListImages(w http.ResponseWriter, r *http.Request) {
	opts := gallery.ListOptions{
		MaxAccess:     h.sessions.AccessLevel(r),
		PublishedOnly: true,
		Limit:         queryUint(r, "limit", 100),
		Offset:        queryUint(r, "offset", 0),
	}

	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		filter, err := h.bridge.Filter(r.Context(), search, r.Cookies(), queryBool(r, "exclude"))
		if err != nil {
			logging.Warn("gallery search %q: %v", search, err)
		}
		opts.Filter = filter
	}

	images, err := h.store.ListImages(r.Context(), opts)
	if err != nil {
		internalError(w, r, "failed to list images", err)
		return
	}
	respond(w, r, http.StatusOK, images)
}

// CreateImage stores an uploaded image and indexes it.
func (h *Handlers) CreateImage(w http.ResponseWriter, r *http.Request) {
	var img gallery.Image
	if err := decodeJSON(w, r, &img); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	img.ID = 0
	if strings.TrimSpace(img.Title) == "" {
		respondError(w, r, http.StatusBadRequest, "title is required")
		return
	}
	if img.Access == 0 {
		img.Access = 1
	}
	if !h.categoryExists(w, r, img.CatID) {
		return
	}

	if err := h.store.CreateImage(r.Context(), &img); err != nil {
		internalError(w, r, "failed to create image", err)
		return
	}
	if err := h.events.Upload(r.Context(), &img); err != nil {
		logging.Error("indexing uploaded image %d: %v", img.ID, err)
	}
	respond(w, r, http.StatusCreated, img)
}

// UpdateImage saves changes to an image. Fields missing from the body keep
// their stored value.
func (h *Handlers) UpdateImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	img, err := h.store.GetImage(r.Context(), id)
	if errors.Is(err, gallery.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		internalError(w, r, "failed to load image", err)
		return
	}

	oldCat := img.CatID
	if err := decodeJSON(w, r, img); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	img.ID = id
	if img.CatID != oldCat && !h.categoryExists(w, r, img.CatID) {
		return
	}

	ev := events.SaveEvent{Context: events.ContextImage, Image: img}
	err = h.events.Save(r.Context(), ev, func(ctx context.Context) error {
		return h.store.UpdateImage(ctx, img)
	})
	if err != nil {
		internalError(w, r, "failed to save image", err)
		return
	}
	respond(w, r, http.StatusOK, img)
}

// DeleteImage removes an image and its index entry.
func (h *Handlers) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err = h.store.DeleteImage(r.Context(), id)
	if errors.Is(err, gallery.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		internalError(w, r, "failed to delete image", err)
		return
	}

	if err := h.events.Delete(r.Context(), events.DeleteEvent{Context: events.ContextImage, ID: id}); err != nil {
		internalError(w, r, "image deleted but its index entry was not removed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type imageStateRequest struct {
	IDs  []int64 `json:"ids"`
	Task string  `json:"task"`
}

// ChangeImageState publishes, unpublishes, approves or rejects images.
func (h *Handlers) ChangeImageState(w http.ResponseWriter, r *http.Request) {
	var req imageStateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, ok := imageTasks[req.Task]
	if !ok {
		respondError(w, r, http.StatusBadRequest, "unknown task "+req.Task)
		return
	}
	if len(req.IDs) == 0 {
		respondError(w, r, http.StatusBadRequest, "ids are required")
		return
	}

	if err := h.store.SetImagesField(r.Context(), req.IDs, t.field, t.value); err != nil {
		internalError(w, r, "failed to change image state", err)
		return
	}

	ev := events.StateChange{Context: events.ContextImage, PKs: req.IDs, Task: t.task, Value: t.value}
	if err := h.events.ChangeState(r.Context(), ev); err != nil {
		internalError(w, r, "failed to update the search index", err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"ids": req.IDs, "task": req.Task})
}

// ImageDetail serves the public detail of an image on its SEF and non-SEF
// routes. Images the viewer cannot see are reported as not found.
func (h *Handlers) ImageDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, http.StatusNotFound, "image not found")
		return
	}

	item, err := h.store.GetIndexable(r.Context(), id)
	if errors.Is(err, gallery.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		internalError(w, r, "failed to load image", err)
		return
	}

	chain, err := h.store.CategoryChain(r.Context(), item.CatID)
	if err != nil {
		internalError(w, r, "failed to load category", err)
		return
	}
	state, access := visibility.Translate(item.Flags(), chain)
	if state != visibility.StateVisible || access > h.sessions.AccessLevel(r) {
		respondError(w, r, http.StatusNotFound, "image not found")
		return
	}

	route, err := h.routes.Build(id)
	if err != nil {
		internalError(w, r, "failed to build image route", err)
		return
	}

	respond(w, r, http.StatusOK, ImageDetail{
		Image:    item.Image,
		Category: item.Category,
		URL:      siteroute.ImageURL(id),
		Route:    route,
	})
}

// categoryExists answers 400 and returns false when id is not a category.
func (h *Handlers) categoryExists(w http.ResponseWriter, r *http.Request, id int64) bool {
	_, err := h.store.GetCategory(r.Context(), id)
	if errors.Is(err, gallery.ErrNotFound) {
		respondError(w, r, http.StatusBadRequest, "category not found")
		return false
	}
	if err != nil {
		internalError(w, r, "failed to load category", err)
		return false
	}
	return true
}
