package metrics

import (
	"time"

	"jgfinder/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	TotalImages     int `json:"totalImages"`
	TotalCategories int `json:"totalCategories"`
	VisibleLinks    int `json:"visibleLinks"`
	HiddenLinks     int `json:"hiddenLinks"`
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	GalleryImagesTotal.Set(float64(stats.TotalImages))
	GalleryCategoriesTotal.Set(float64(stats.TotalCategories))
	IndexedLinks.WithLabelValues("visible").Set(float64(stats.VisibleLinks))
	IndexedLinks.WithLabelValues("hidden").Set(float64(stats.HiddenLinks))

	logging.Debug("Metrics collected: images=%d, categories=%d, visible=%d, hidden=%d",
		stats.TotalImages, stats.TotalCategories, stats.VisibleLinks, stats.HiddenLinks)
}
