package indexer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Masterminds/squirrel"

	"jgfinder/internal/events"
	"jgfinder/internal/extensions"
	"jgfinder/internal/finder"
	"jgfinder/internal/gallery"
	"jgfinder/internal/logging"
	"jgfinder/internal/metrics"
	"jgfinder/internal/siteroute"
	"jgfinder/internal/visibility"
)

// TypeTitle is the search index content type of gallery images.
const TypeTitle = "Image (JoomGallery)"

// Meta values copied into the searchable text of every image.
var metaInstructions = []string{"metakey", "metadesc", "owner", "author"}

// GalleryStore is the gallery access the adapter needs.
type GalleryStore interface {
	GetImage(ctx context.Context, id int64) (*gallery.Image, error)
	GetCategory(ctx context.Context, id int64) (*gallery.Category, error)
	CategoryChain(ctx context.Context, id int64) ([]visibility.CategoryFlags, error)
	DescendantVisibility(ctx context.Context, catID int64) ([]gallery.ImageVisibility, error)
	GetIndexable(ctx context.Context, id int64) (*gallery.IndexableImage, error)
	ListIndexable(ctx context.Context, where squirrel.Sqlizer) ([]gallery.IndexableImage, error)
}

// SearchIndex is the search index API the adapter writes to.
type SearchIndex interface {
	Index(ctx context.Context, r *finder.Result) (int64, error)
	Remove(ctx context.Context, linkID int64) error
	RemoveByURL(ctx context.Context, url string) (bool, error)
	RemoveByType(ctx context.Context, typeTitle string) (int64, error)
	Change(ctx context.Context, url, property string, value int) error
	ChangeTaxonomy(ctx context.Context, n finder.Node) error
	URLsByType(ctx context.Context, typeTitle string) ([]string, error)
}

// ExtensionLookup answers which extensions are installed and enabled.
type ExtensionLookup interface {
	Find(ctx context.Context, k extensions.Key) (*extensions.Extension, error)
	IsEnabled(ctx context.Context, k extensions.Key) (bool, error)
}

// categoryChanged reports whether a category save affects the visibility
// or access of the images below it.
func categoryChanged(before, after *gallery.Category) bool {
	return before.Access != after.Access ||
		before.Published != after.Published ||
		before.Hidden != after.Hidden ||
		before.InHidden != after.InHidden ||
		before.ExcludeSearch != after.ExcludeSearch ||
		before.ParentID != after.ParentID
}

func stateChanged(before, after *gallery.Image) bool {
	return before.Published != after.Published ||
		before.Hidden != after.Hidden ||
		before.Approved != after.Approved
}

// BeforeSave captures the stored image or category so AfterSave can tell
// what changed.
func (a *Adapter) BeforeSave(ctx context.Context, ev events.SaveEvent) (events.Prior, error) {
	if ev.IsNew {
		return events.Prior{}, nil
	}

	switch {
	case events.IsImageContext(ev.Context) && ev.Image != nil:
		img, err := a.store.GetImage(ctx, ev.Image.ID)
		if errors.Is(err, gallery.ErrNotFound) {
			return events.Prior{}, nil
		}
		if err != nil {
			return events.Prior{}, err
		}
		return events.Prior{Image: img}, nil

	case ev.Context == events.ContextCategory && ev.Category != nil:
		cat, err := a.store.GetCategory(ctx, ev.Category.ID)
		if errors.Is(err, gallery.ErrNotFound) {
			return events.Prior{}, nil
		}
		if err != nil {
			return events.Prior{}, err
		}
		return events.Prior{Category: cat}, nil
	}

	return events.Prior{}, nil
}

// AfterSave updates the index for a saved image, or cascades a category
// change to every image below it.
func (a *Adapter) AfterSave(ctx context.Context, ev events.SaveEvent, prior events.Prior) error {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	switch {
	case events.IsImageContext(ev.Context) && ev.Image != nil:
		img := ev.Image
		if !ev.IsNew && prior.Image != nil {
			if prior.Image.Access != img.Access {
				if err := a.itemAccessChange(ctx, img); err != nil {
					return err
				}
			}
			if stateChanged(prior.Image, img) {
				if err := a.itemStateChange(ctx, img, "item_save"); err != nil {
					return err
				}
			}
		}
		return a.reindex(ctx, img.ID)

	case ev.Context == events.ContextCategory && ev.Category != nil:
		if ev.IsNew || prior.Category == nil {
			return nil
		}
		if !categoryChanged(prior.Category, ev.Category) {
			if prior.Category.Name != ev.Category.Name {
				return a.reindexCategory(ctx, ev.Category.ID)
			}
			return nil
		}
		if err := a.cascade(ctx, ev.Category.ID, nil, "category_save"); err != nil {
			return err
		}
		if prior.Category.Name != ev.Category.Name {
			return a.reindexCategory(ctx, ev.Category.ID)
		}
	}

	return nil
}

// AfterDelete removes a deleted image, or an index entry deleted from the
// index manager, from the search index.
func (a *Adapter) AfterDelete(ctx context.Context, ev events.DeleteEvent) error {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	switch ev.Context {
	case events.ContextImage:
		_, err := a.index.RemoveByURL(ctx, siteroute.ImageURL(ev.ID))
		return err
	case events.ContextFinderIndex:
		return a.index.Remove(ctx, ev.ID)
	default:
		return nil
	}
}

// ChangeState handles publish and approve tasks on images, and removes
// every image from the index when the search plugin is disabled.
func (a *Adapter) ChangeState(ctx context.Context, ev events.StateChange) error {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	if ev.Context == events.ContextImage && (ev.Task == events.TaskPublish || ev.Task == events.TaskApprove) {
		for _, pk := range ev.PKs {
			img, err := a.store.GetImage(ctx, pk)
			if errors.Is(err, gallery.ErrNotFound) {
				logging.Warn("State change for unknown image %d ignored", pk)
				continue
			}
			if err != nil {
				return err
			}

			if ev.Task == events.TaskApprove {
				img.Approved = ev.Value
			} else {
				img.Published = ev.Value
			}

			if err := a.itemStateChange(ctx, img, "item_state"); err != nil {
				return err
			}
			if err := a.reindex(ctx, pk); err != nil {
				return err
			}
		}
		return nil
	}

	if ev.Context == events.ContextPlugin && ev.Value == 0 {
		return a.pluginDisable(ctx, ev.PKs)
	}

	return nil
}

// CategoryChangeState cascades a new published value of gallery
// categories to the images below them.
func (a *Adapter) CategoryChangeState(ctx context.Context, ev events.CategoryStateChange) error {
	if ev.Extension != events.Extension {
		return nil
	}

	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	for _, pk := range ev.PKs {
		value := ev.Value
		overlay := func(c *visibility.CategoryFlags) {
			if c.ID == pk {
				c.Published = value
			}
		}
		if err := a.cascade(ctx, pk, overlay, "category_state"); err != nil {
			return err
		}
	}
	return nil
}

// itemAccessChange updates the effective access of one image.
func (a *Adapter) itemAccessChange(ctx context.Context, img *gallery.Image) error {
	chain, err := a.store.CategoryChain(ctx, img.CatID)
	if err != nil {
		return err
	}
	_, access := visibility.Translate(img.Flags(), chain)
	metrics.VisibilityRecomputations.WithLabelValues("item_access").Inc()
	return a.index.Change(ctx, siteroute.ImageURL(img.ID), finder.PropertyAccess, access)
}

// itemStateChange updates the indexer state of one image from the given
// flags, which may not be stored yet.
func (a *Adapter) itemStateChange(ctx context.Context, img *gallery.Image, trigger string) error {
	chain, err := a.store.CategoryChain(ctx, img.CatID)
	if err != nil {
		return err
	}
	state, _ := visibility.Translate(img.Flags(), chain)
	metrics.VisibilityRecomputations.WithLabelValues(trigger).Inc()
	return a.index.Change(ctx, siteroute.ImageURL(img.ID), finder.PropertyState, state)
}

// cascade recomputes state and access of every image in the category or
// below it, and of the category taxonomy node of each image. overlay, when
// set, is applied to each chain element before translating, for changes not
// stored yet. All gallery reads happen before the first index update.
func (a *Adapter) cascade(ctx context.Context, catID int64, overlay func(*visibility.CategoryFlags), trigger string) error {
	items, err := a.store.DescendantVisibility(ctx, catID)
	if err != nil {
		return err
	}

	type linkChange struct {
		url           string
		state, access int
	}
	changes := make([]linkChange, 0, len(items))
	nodes := make(map[int64]*finder.Node)
	var nodeOrder []int64

	for _, it := range items {
		chain := it.Chain
		if overlay != nil {
			chain = slices.Clone(chain)
			for i := range chain {
				overlay(&chain[i])
			}
		}

		state, access := visibility.Translate(it.Item, chain)
		metrics.VisibilityRecomputations.WithLabelValues(trigger).Inc()
		changes = append(changes, linkChange{siteroute.ImageURL(it.ID), state, access})

		if len(chain) == 0 {
			continue
		}
		if _, ok := nodes[chain[0].ID]; ok {
			continue
		}
		cat, err := a.store.GetCategory(ctx, chain[0].ID)
		if errors.Is(err, gallery.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		nodes[cat.ID] = &finder.Node{
			Branch: finder.BranchCategory,
			Title:  cat.Name,
			State:  visibility.CategoryState(chain),
			Access: visibility.CategoryAccess(chain),
		}
		nodeOrder = append(nodeOrder, cat.ID)
	}

	for _, c := range changes {
		if err := a.index.Change(ctx, c.url, finder.PropertyState, c.state); err != nil {
			return err
		}
		if err := a.index.Change(ctx, c.url, finder.PropertyAccess, c.access); err != nil {
			return err
		}
	}
	for _, id := range nodeOrder {
		if err := a.index.ChangeTaxonomy(ctx, *nodes[id]); err != nil {
			return err
		}
	}

	logging.Debug("Recomputed %d images and %d category nodes below category %d (%s)",
		len(items), len(nodeOrder), catID, trigger)
	return nil
}

// reindexCategory fully reindexes every image below a category, used when
// the category title carried in the taxonomy changed.
func (a *Adapter) reindexCategory(ctx context.Context, catID int64) error {
	items, err := a.store.DescendantVisibility(ctx, catID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := a.reindex(ctx, it.ID); err != nil {
			return err
		}
	}
	return nil
}

// pluginDisable removes every gallery image from the index when the search
// plugin is among the disabled extensions.
func (a *Adapter) pluginDisable(ctx context.Context, pks []int64) error {
	ext, err := a.ext.Find(ctx, extensions.FinderPlugin)
	if errors.Is(err, extensions.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !slices.Contains(pks, ext.ID) {
		return nil
	}

	n, err := a.index.RemoveByType(ctx, TypeTitle)
	if err != nil {
		return err
	}
	logging.Info("Search plugin disabled: removed %d gallery images from the index", n)
	return nil
}

// componentEnabled reports whether the gallery component is enabled.
func (a *Adapter) componentEnabled(ctx context.Context) (bool, error) {
	return a.ext.IsEnabled(ctx, extensions.Component)
}

// reindex rebuilds the index entry of one image. Nothing is indexed while
// the gallery component is disabled, or when the image does not exist.
// Callers hold syncMu.
func (a *Adapter) reindex(ctx context.Context, id int64) error {
	enabled, err := a.componentEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		logging.Debug("Gallery component disabled, not indexing image %d", id)
		return nil
	}

	item, err := a.store.GetIndexable(ctx, id)
	if errors.Is(err, gallery.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	chain, err := a.store.CategoryChain(ctx, item.CatID)
	if err != nil {
		return err
	}

	if _, err := a.index.Index(ctx, BuildResult(item, chain)); err != nil {
		return fmt.Errorf("index image %d: %w", id, err)
	}
	return nil
}

// BuildResult describes an image for the search index.
func BuildResult(item *gallery.IndexableImage, chain []visibility.CategoryFlags) *finder.Result {
	r := finder.NewResult()
	r.URL = siteroute.ImageURL(item.ID)
	r.Route = siteroute.ImageRoute(item.ID)
	r.Path = r.Route
	r.Title = item.Title
	r.Description = item.Text
	r.Type = TypeTitle
	r.Language = "*"
	r.PublishStart = item.Date

	r.SetMeta("metakey", item.MetaKey)
	r.SetMeta("metadesc", item.MetaDesc)
	r.SetMeta("owner", item.OwnerName)
	r.SetMeta("author", item.Author)
	for _, name := range metaInstructions {
		r.AddInstruction(name)
	}

	r.State, r.Access = visibility.Translate(item.Flags(), chain)

	r.AddTaxonomy(finder.BranchType, TypeTitle, visibility.StateVisible, 1)
	if item.Author != "" {
		r.AddTaxonomy(finder.BranchAuthor, item.Author, visibility.StateVisible, 1)
	}
	if item.OwnerName != "" {
		r.AddTaxonomy(finder.BranchOwner, item.OwnerName, visibility.StateVisible, 1)
	}
	if item.Category != "" {
		r.AddTaxonomy(finder.BranchCategory, item.Category,
			visibility.CategoryState(chain), visibility.CategoryAccess(chain))
	}

	return r
}
