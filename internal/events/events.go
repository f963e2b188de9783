package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"jgfinder/internal/gallery"
	"jgfinder/internal/logging"
)

// Event contexts.
const (
	ContextImage       = "com_joomgallery.image"
	ContextImageQuick  = "com_joomgallery.image.quick"
	ContextImageBatch  = "com_joomgallery.image.batch"
	ContextCategory    = "com_joomgallery.category"
	ContextFinderIndex = "com_finder.index"
	ContextPlugin      = "com_plugins.plugin"

	// Extension is the gallery component name used by category events.
	Extension = "com_joomgallery"
)

// State change tasks.
const (
	TaskPublish = "publish"
	TaskApprove = "approve"
)

// IsImageContext reports whether ctx names an image save.
func IsImageContext(c string) bool {
	return c == ContextImage || c == ContextImageQuick || c == ContextImageBatch
}

// SaveEvent describes an image or category about to be, or just, saved.
// Exactly one of Image and Category is set.
type SaveEvent struct {
	Context  string
	Image    *gallery.Image
	Category *gallery.Category
	IsNew    bool
}

// Prior is the stored row as it was before a save. It is empty for new
// rows and for contexts a listener ignores.
type Prior struct {
	Image    *gallery.Image
	Category *gallery.Category
}

// DeleteEvent describes a removed row. ID is the image id for image
// contexts and the link id for ContextFinderIndex.
type DeleteEvent struct {
	Context string
	ID      int64
}

// StateChange describes a list-view state change. For images, Task is
// TaskPublish or TaskApprove and Value the new flag. For plugins, PKs are
// extension ids and Value the new enabled flag.
type StateChange struct {
	Context string
	PKs     []int64
	Task    string
	Value   int
}

// CategoryStateChange describes a change of the published flag of
// categories.
type CategoryStateChange struct {
	Extension string
	PKs       []int64
	Value     int
}

// Listener reacts to gallery lifecycle events.
type Listener interface {
	BeforeSave(ctx context.Context, ev SaveEvent) (Prior, error)
	AfterSave(ctx context.Context, ev SaveEvent, prior Prior) error
	AfterDelete(ctx context.Context, ev DeleteEvent) error
	ChangeState(ctx context.Context, ev StateChange) error
	CategoryChangeState(ctx context.Context, ev CategoryStateChange) error
}

// Dispatcher fans events out to its listeners synchronously, in
// registration order.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewDispatcher returns a dispatcher with no listeners.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a listener.
func (d *Dispatcher) Register(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

func (d *Dispatcher) snapshot() []Listener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Listener, len(d.listeners))
	copy(out, d.listeners)
	return out
}

// Save runs BeforeSave on every listener, then save, then AfterSave with
// the prior value each listener captured. A BeforeSave error aborts the
// save. AfterSave errors are joined and returned after every listener ran.
func (d *Dispatcher) Save(ctx context.Context, ev SaveEvent, save func(ctx context.Context) error) error {
	listeners := d.snapshot()

	priors := make([]Prior, len(listeners))
	for i, l := range listeners {
		p, err := l.BeforeSave(ctx, ev)
		if err != nil {
			return fmt.Errorf("before save %s: %w", ev.Context, err)
		}
		priors[i] = p
	}

	if save != nil {
		if err := save(ctx); err != nil {
			return err
		}
	}

	return d.afterSave(ctx, listeners, ev, priors)
}

func (d *Dispatcher) afterSave(ctx context.Context, listeners []Listener, ev SaveEvent, priors []Prior) error {
	var errs []error
	for i, l := range listeners {
		if err := l.AfterSave(ctx, ev, priors[i]); err != nil {
			logging.Error("after save %s failed: %v", ev.Context, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Upload relays a freshly uploaded image as a new image save.
func (d *Dispatcher) Upload(ctx context.Context, img *gallery.Image) error {
	ev := SaveEvent{Context: ContextImage, Image: img, IsNew: true}
	listeners := d.snapshot()
	return d.afterSave(ctx, listeners, ev, make([]Prior, len(listeners)))
}

// Delete notifies listeners of a removed row.
func (d *Dispatcher) Delete(ctx context.Context, ev DeleteEvent) error {
	var errs []error
	for _, l := range d.snapshot() {
		if err := l.AfterDelete(ctx, ev); err != nil {
			logging.Error("after delete %s %d failed: %v", ev.Context, ev.ID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChangeState notifies listeners of a list-view state change.
func (d *Dispatcher) ChangeState(ctx context.Context, ev StateChange) error {
	var errs []error
	for _, l := range d.snapshot() {
		if err := l.ChangeState(ctx, ev); err != nil {
			logging.Error("change state %s failed: %v", ev.Context, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CategoryChangeState notifies listeners of a category published change.
func (d *Dispatcher) CategoryChangeState(ctx context.Context, ev CategoryStateChange) error {
	var errs []error
	for _, l := range d.snapshot() {
		if err := l.CategoryChangeState(ctx, ev); err != nil {
			logging.Error("category change state %s failed: %v", ev.Extension, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
