package handlers

import (
	"net/http"
	"runtime"
	"time"

	"jgfinder/internal/indexer"
	"jgfinder/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status         string `json:"status"`
	Ready          bool   `json:"ready"`
	Version        string `json:"version"`
	Uptime         string `json:"uptime"`
	Indexing       bool   `json:"indexing"`
	LastIndexed    string `json:"lastIndexed,omitempty"`
	LastIndexError string `json:"lastIndexError,omitempty"`
	Database       string `json:"database"`

	// Progress info
	ItemsIndexed  int64                  `json:"itemsIndexed"`
	IndexProgress *indexer.IndexProgress `json:"indexProgress,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalImages     int `json:"totalImages"`
	TotalCategories int `json:"totalCategories"`
	VisibleLinks    int `json:"visibleLinks"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthStatus := h.indexer.GetHealthStatus()
	stats := h.db.GetStats()

	response := HealthResponse{
		Ready:           healthStatus.Ready,
		Version:         startup.Version,
		Uptime:          healthStatus.Uptime,
		Indexing:        healthStatus.Indexing,
		Database:        "ok",
		ItemsIndexed:    healthStatus.ItemsIndexed,
		IndexProgress:   healthStatus.IndexProgress,
		GoVersion:       runtime.Version(),
		NumGoroutine:    runtime.NumGoroutine(),
		TotalImages:     stats.TotalImages,
		TotalCategories: stats.TotalCategories,
		VisibleLinks:    stats.VisibleLinks,
	}

	if healthStatus.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if !healthStatus.LastIndexed.IsZero() {
		response.LastIndexed = healthStatus.LastIndexed.Format(time.RFC3339)
	}

	if healthStatus.LastIndexError != "" {
		response.LastIndexError = healthStatus.LastIndexError
		response.Status = statusDegraded
	}

	if err := h.db.Ping(r.Context()); err != nil {
		response.Database = err.Error()
		response.Status = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthStatus.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 only when the initial reindex has finished
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.indexer.IsReady() {
		writeJSONStatus(w, "ready")
		return
	}
	writeJSONError(w, "not_ready", http.StatusServiceUnavailable)
}

// GetStats returns gallery and index counts.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.db.GetStats())
}
