package indexer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/squirrel"

	"jgfinder/internal/gallery"
	"jgfinder/internal/logging"
	"jgfinder/internal/metrics"
	"jgfinder/internal/siteroute"
	"jgfinder/internal/visibility"
)

const (
	// Number of images indexed between progress updates and pauses
	batchSize = 200

	// Delay between batches to allow other operations
	batchDelay = 10 * time.Millisecond
)

// ReindexRecorder persists the time of the last completed full reindex.
type ReindexRecorder interface {
	GetLastReindex(ctx context.Context) (time.Time, error)
	SetLastReindex(ctx context.Context, t time.Time) error
}

// Adapter keeps the search index in sync with the gallery. It listens to
// gallery events and can rebuild every image entry with IndexAll.
type Adapter struct {
	store    GalleryStore
	index    SearchIndex
	ext      ExtensionLookup
	recorder ReindexRecorder

	// syncMu serialises index writes of event handlers and reindex batches.
	syncMu sync.Mutex

	indexMu              sync.Mutex
	isIndexing           bool
	lastIndexTime        time.Time
	lastIndexError       error
	initialIndexComplete bool
	startTime            time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Progress tracking
	itemsIndexed  atomic.Int64
	itemsFailed   atomic.Int64
	indexProgress atomic.Value
}

// IndexProgress tracks the current reindex progress
type IndexProgress struct {
	ItemsIndexed int64     `json:"itemsIndexed"`
	ItemsFailed  int64     `json:"itemsFailed"`
	ItemsTotal   int64     `json:"itemsTotal"`
	IsIndexing   bool      `json:"isIndexing"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready          bool           `json:"ready"`
	Indexing       bool           `json:"indexing"`
	StartTime      time.Time      `json:"startTime"`
	Uptime         string         `json:"uptime"`
	LastIndexed    time.Time      `json:"lastIndexed,omitempty"`
	LastIndexError string         `json:"lastIndexError,omitempty"`
	ItemsIndexed   int64          `json:"itemsIndexed"`
	IndexProgress  *IndexProgress `json:"indexProgress,omitempty"`
}

// New creates an Adapter. recorder may be nil.
func New(store GalleryStore, index SearchIndex, ext ExtensionLookup, recorder ReindexRecorder) *Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		store:     store,
		index:     index,
		ext:       ext,
		recorder:  recorder,
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.indexProgress.Store(IndexProgress{})
	return a
}

// Start restores the last reindex time and runs a full reindex in the
// background. Stop cancels it.
func (a *Adapter) Start(ctx context.Context) {
	a.restoreLastIndexTime(ctx)

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(a.ctx, cancel)
	a.runBackground("Initial reindex", func() error {
		defer stop()
		defer cancel()
		return a.IndexAll(ctx)
	})
}

// Stop cancels running background reindexes and waits for them to return.
func (a *Adapter) Stop() {
	a.cancel()
	a.wg.Wait()
}

// MarkReady restores the last reindex time and reports the adapter ready
// without an initial reindex.
func (a *Adapter) MarkReady(ctx context.Context) {
	a.restoreLastIndexTime(ctx)

	a.indexMu.Lock()
	defer a.indexMu.Unlock()
	a.initialIndexComplete = true
}

func (a *Adapter) restoreLastIndexTime(ctx context.Context) {
	if a.recorder == nil {
		return
	}
	last, err := a.recorder.GetLastReindex(ctx)
	if err != nil {
		logging.Warn("failed to read last reindex time: %v", err)
		return
	}

	a.indexMu.Lock()
	defer a.indexMu.Unlock()
	if a.lastIndexTime.IsZero() {
		a.lastIndexTime = last
	}
}

func (a *Adapter) runBackground(name string, run func() error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logging.Info("%s started in background...", name)
		if err := run(); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("%s failed: %v", name, err)
		}
	}()
}

// IsReady returns true once the initial reindex has finished.
func (a *Adapter) IsReady() bool {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()
	return a.initialIndexComplete
}

// IsIndexing returns whether a full reindex is in progress.
func (a *Adapter) IsIndexing() bool {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()
	return a.isIndexing
}

func (a *Adapter) getProgress() IndexProgress {
	if progress, ok := a.indexProgress.Load().(IndexProgress); ok {
		return progress
	}
	return IndexProgress{}
}

// GetHealthStatus returns detailed health information.
func (a *Adapter) GetHealthStatus() HealthStatus {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()

	progress := a.getProgress()

	status := HealthStatus{
		Ready:        a.initialIndexComplete,
		Indexing:     a.isIndexing,
		StartTime:    a.startTime,
		Uptime:       time.Since(a.startTime).String(),
		LastIndexed:  a.lastIndexTime,
		ItemsIndexed: a.itemsIndexed.Load(),
	}

	if a.isIndexing {
		status.IndexProgress = &progress
	}

	if a.lastIndexError != nil {
		status.LastIndexError = a.lastIndexError.Error()
	}

	return status
}

// TriggerIndex starts a full reindex in the background. Stop cancels it.
func (a *Adapter) TriggerIndex() {
	a.runBackground("Triggered reindex", func() error {
		return a.IndexAll(a.ctx)
	})
}

// ErrIndexing is returned by IndexAll when a reindex is already running.
var ErrIndexing = errors.New("indexer: reindex already in progress")

// IndexAll indexes every gallery image and removes index entries whose
// image no longer exists.
func (a *Adapter) IndexAll(ctx context.Context) (err error) {
	if !a.tryStartIndexing() {
		logging.Info("Reindex already in progress, skipping...")
		return ErrIndexing
	}
	defer func() { a.finishIndexing(err) }()

	metrics.ReindexIsRunning.Set(1)
	defer metrics.ReindexIsRunning.Set(0)
	metrics.ReindexRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting full reindex...")
	a.resetCounters(startTime)

	enabled, err := a.componentEnabled(ctx)
	if err != nil {
		metrics.ReindexErrors.Inc()
		return err
	}
	if !enabled {
		logging.Warn("Gallery component disabled, full reindex skipped")
		return nil
	}

	snapshot, err := a.store.ListIndexable(ctx, nil)
	if err != nil {
		metrics.ReindexErrors.Inc()
		return err
	}
	ids := make([]int64, len(snapshot))
	for i := range snapshot {
		ids[i] = snapshot[i].ID
	}

	seen := make(map[string]bool, len(ids))
	if err := a.processBatchedItems(ctx, ids, seen, startTime); err != nil {
		metrics.ReindexErrors.Inc()
		return err
	}

	if err := a.cleanupMissingItems(ctx, seen); err != nil {
		logging.Error("Error cleaning up removed images: %v", err)
		metrics.ReindexErrors.Inc()
	}

	a.finalizeIndex(ctx, startTime, int64(len(ids)))
	return nil
}

// processBatchedItems indexes the images in batches, pausing between
// batches. Each batch is read again from the store while event handlers
// are held off, so changes made since the snapshot are not overwritten.
func (a *Adapter) processBatchedItems(ctx context.Context, ids []int64, seen map[string]bool, startTime time.Time) error {
	total := int64(len(ids))

	for start := 0; start < len(ids); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := ids[start:min(start+batchSize, len(ids))]
		if err := a.indexBatch(ctx, batch, seen); err != nil {
			return err
		}

		a.updateProgress(startTime, total)
		logging.Debug("Reindex progress: %d/%d images", start+len(batch), total)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(batchDelay):
		}
	}

	return nil
}

func (a *Adapter) indexBatch(ctx context.Context, ids []int64, seen map[string]bool) error {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	items, err := a.store.ListIndexable(ctx, squirrel.Eq{"a.id": ids})
	if err != nil {
		return err
	}

	chains := make(map[int64][]visibility.CategoryFlags)
	for i := range items {
		item := &items[i]
		chain, ok := chains[item.CatID]
		if !ok {
			chain, err = a.store.CategoryChain(ctx, item.CatID)
			if err != nil {
				return err
			}
			chains[item.CatID] = chain
		}

		r := BuildResult(item, chain)
		seen[r.URL] = true
		if _, err := a.index.Index(ctx, r); err != nil {
			logging.Error("Error indexing image %d: %v", item.ID, err)
			a.itemsFailed.Add(1)
		} else {
			a.itemsIndexed.Add(1)
			metrics.VisibilityRecomputations.WithLabelValues("reindex").Inc()
		}
	}
	return nil
}

// cleanupMissingItems removes gallery links not seen during the reindex
// whose image no longer exists.
func (a *Adapter) cleanupMissingItems(ctx context.Context, seen map[string]bool) error {
	urls, err := a.index.URLsByType(ctx, TypeTitle)
	if err != nil {
		return err
	}

	var removed int
	for _, u := range urls {
		if seen[u] {
			continue
		}
		ok, err := a.removeIfGone(ctx, u)
		if err != nil {
			return err
		}
		if ok {
			removed++
		}
	}
	if removed > 0 {
		logging.Info("Removed %d stale gallery links from the index", removed)
	}
	return nil
}

// removeIfGone removes the link of url unless its image exists.
func (a *Adapter) removeIfGone(ctx context.Context, url string) (bool, error) {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	if id, ok := siteroute.ImageID(url); ok {
		_, err := a.store.GetImage(ctx, id)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, gallery.ErrNotFound) {
			return false, err
		}
	}
	return a.index.RemoveByURL(ctx, url)
}

// tryStartIndexing attempts to start indexing, returns false if already in progress.
func (a *Adapter) tryStartIndexing() bool {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()

	if a.isIndexing {
		return false
	}
	a.isIndexing = true
	return true
}

// finishIndexing marks indexing as complete.
func (a *Adapter) finishIndexing(err error) {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()

	a.isIndexing = false
	a.initialIndexComplete = true
	a.lastIndexError = err

	progress := a.getProgress()
	progress.IsIndexing = false
	a.indexProgress.Store(progress)
}

// resetCounters resets the indexing counters.
func (a *Adapter) resetCounters(startTime time.Time) {
	a.itemsIndexed.Store(0)
	a.itemsFailed.Store(0)
	a.indexProgress.Store(IndexProgress{
		IsIndexing: true,
		StartedAt:  startTime,
	})
}

// updateProgress updates the indexing progress.
func (a *Adapter) updateProgress(startTime time.Time, total int64) {
	a.indexProgress.Store(IndexProgress{
		ItemsIndexed: a.itemsIndexed.Load(),
		ItemsFailed:  a.itemsFailed.Load(),
		ItemsTotal:   total,
		IsIndexing:   true,
		StartedAt:    startTime,
	})
}

// finalizeIndex records the completed run.
func (a *Adapter) finalizeIndex(ctx context.Context, startTime time.Time, total int64) {
	duration := time.Since(startTime)
	now := time.Now()

	a.indexMu.Lock()
	a.lastIndexTime = now
	a.indexMu.Unlock()

	if a.recorder != nil {
		if err := a.recorder.SetLastReindex(ctx, now); err != nil {
			logging.Warn("failed to record reindex time: %v", err)
		}
	}

	metrics.ReindexLastRunDuration.Set(duration.Seconds())
	metrics.ReindexItemsProcessed.Add(float64(a.itemsIndexed.Load()))

	logging.Info("Reindex complete: %d/%d images in %v (%d failed)",
		a.itemsIndexed.Load(), total, duration, a.itemsFailed.Load())
}
