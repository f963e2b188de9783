package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jgfinder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jgfinder_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jgfinder_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jgfinder_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jgfinder_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jgfinder_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"outcome"}, // commit, rollback
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jgfinder_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Finder index metrics
var (
	IndexOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jgfinder_index_operations_total",
			Help: "Total number of search index mutations",
		},
		[]string{"operation", "status"}, // index, remove, change
	)

	VisibilityRecomputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jgfinder_visibility_recomputations_total",
			Help: "Number of image state/access recomputations by trigger",
		},
		[]string{"trigger"},
	)

	IndexedLinks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jgfinder_index_links",
			Help: "Number of links in the search index by state",
		},
		[]string{"state"}, // "visible", "hidden"
	)
)

// Reindex metrics
var (
	ReindexRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jgfinder_reindex_runs_total",
			Help: "Total number of full reindex runs",
		},
	)

	ReindexItemsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jgfinder_reindex_items_processed_total",
			Help: "Total number of images processed by full reindex runs",
		},
	)

	ReindexErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jgfinder_reindex_errors_total",
			Help: "Total number of full reindex errors",
		},
	)

	ReindexIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jgfinder_reindex_running",
			Help: "Whether a full reindex is currently running (1 = running, 0 = idle)",
		},
	)

	ReindexLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jgfinder_reindex_last_run_duration_seconds",
			Help: "Duration of the last full reindex in seconds",
		},
	)
)

// Search bridge metrics
var (
	SearchBridgeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jgfinder_search_bridge_requests_total",
			Help: "Total number of forwarded search requests by outcome",
		},
		[]string{"outcome"}, // ok, http_error, bad_status, parse_error, no_taxonomy
	)

	SearchBridgeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jgfinder_search_bridge_duration_seconds",
			Help:    "Duration of forwarded search requests in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	SearchBridgeMatches = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jgfinder_search_bridge_matches",
			Help:    "Number of image ids extracted per forwarded search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)
)

// Gallery metrics
var (
	GalleryImagesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jgfinder_gallery_images_total",
			Help: "Total number of gallery images",
		},
	)

	GalleryCategoriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jgfinder_gallery_categories_total",
			Help: "Total number of gallery categories",
		},
	)
)
