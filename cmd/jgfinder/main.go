package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"jgfinder/internal/database"
	"jgfinder/internal/events"
	"jgfinder/internal/extensions"
	"jgfinder/internal/finder"
	"jgfinder/internal/gallery"
	"jgfinder/internal/handlers"
	"jgfinder/internal/indexer"
	"jgfinder/internal/logging"
	"jgfinder/internal/messages"
	"jgfinder/internal/metrics"
	"jgfinder/internal/middleware"
	"jgfinder/internal/searchbridge"
	"jgfinder/internal/session"
	"jgfinder/internal/siteroute"
	"jgfinder/internal/startup"
)

const (
	metricsInterval = time.Minute
	shutdownTimeout = 30 * time.Second
	compressMinSize = 1024

	searchPath = "/search"
	adminPath  = "/api"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	logging.Configure(os.Stdout, config.LogFormat, config.Level())

	ctx := context.Background()

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	registry := extensions.NewRegistry(db)
	if err := registerExtensions(ctx, registry, config.ComponentEnabled); err != nil {
		startup.LogFatal("Failed to register extensions: %v", err)
	}

	metrics.InitializeMetrics()
	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(db, metricsInterval)
		collector.Start()
	}

	store := gallery.NewStore(db)
	index := finder.New(db)

	adapter := indexer.New(store, index, registry, db)
	dispatcher := events.NewDispatcher()
	dispatcher.Register(adapter)

	router := mux.NewRouter()
	routes := siteroute.New(router)
	bridge, err := searchbridge.New(searchbridge.Config{
		SiteURL: config.SiteURL,
		Limit:   config.SearchLimit,
		Timeout: config.SearchTimeout,
	}, index, routes)
	if err != nil {
		startup.LogFatal("Failed to configure search bridge: %v", err)
	}

	h := handlers.New(handlers.Deps{
		DB:         db,
		Store:      store,
		Index:      index,
		Extensions: registry,
		Indexer:    adapter,
		Events:     dispatcher,
		Bridge:     bridge,
		Sessions:   session.NewManager(config.SessionKeyBytes(), config.SessionSecure),
		Routes:     routes,
	}, config)

	setupRouter(router, h, config.MetricsEnabled)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	startup.LogIndexerInit(config.IndexOnStart)
	if config.IndexOnStart {
		adapter.Start(ctx)
	} else {
		adapter.MarkReady(ctx)
	}

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Compression(compressMinSize)(middleware.AccessLog(loggingConfig)(router))

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, adapter, collector)
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		SiteURL:         config.SiteURL,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// registerExtensions makes sure the gallery component and its three search
// plugins exist. componentEnabled only applies when the component row is
// first created.
func registerExtensions(ctx context.Context, registry *extensions.Registry, componentEnabled bool) error {
	exts := []*extensions.Extension{
		newExtension("JoomGallery", extensions.Component, componentEnabled),
		newExtension("Smart Search - JoomGallery", extensions.FinderPlugin, true),
		newExtension("JoomGallery - Smart Search", extensions.GalleryPlugin, true),
		newExtension("System - JoomGallery Smart Search", extensions.SystemPlugin, true),
	}

	state := make(map[string]bool, len(exts))
	for _, e := range exts {
		if err := registry.Register(ctx, e); err != nil {
			return err
		}
		state[e.Name] = e.Enabled
	}
	startup.LogExtensions(state)
	return nil
}

func newExtension(name string, k extensions.Key, enabled bool) *extensions.Extension {
	return &extensions.Extension{
		Name:    name,
		Type:    k.Type,
		Element: k.Element,
		Folder:  k.Folder,
		Enabled: enabled,
		Version: startup.Version,
	}
}

func setupRouter(r *mux.Router, h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r.Use(messages.Middleware, middleware.FeedLimit(searchPath, adminPath))
	if metricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	}

	// Site routes
	r.HandleFunc(searchPath, h.Search).Methods(http.MethodGet).Name(siteroute.RouteSearch)
	r.HandleFunc("/session/access", h.GetAccess).Methods(http.MethodGet)
	r.HandleFunc("/session/access", h.SetAccess).Methods(http.MethodPost)
	siteroute.Register(r, http.HandlerFunc(h.ImageDetail))

	// Administration API
	api := r.PathPrefix(adminPath).Subrouter()
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/images", h.ListImages).Methods(http.MethodGet)
	api.HandleFunc("/images", h.CreateImage).Methods(http.MethodPost)
	api.HandleFunc("/images/state", h.ChangeImageState).Methods(http.MethodPost)
	api.HandleFunc("/images/{id:[0-9]+}", h.UpdateImage).Methods(http.MethodPut)
	api.HandleFunc("/images/{id:[0-9]+}", h.DeleteImage).Methods(http.MethodDelete)
	api.HandleFunc("/images/{id:[0-9]+}/index", h.GetImageIndexEntry).Methods(http.MethodGet)
	api.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	api.HandleFunc("/categories", h.CreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/state", h.ChangeCategoryState).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id:[0-9]+}", h.GetCategory).Methods(http.MethodGet)
	api.HandleFunc("/categories/{id:[0-9]+}", h.UpdateCategory).Methods(http.MethodPut)
	api.HandleFunc("/plugins", h.ListPlugins).Methods(http.MethodGet)
	api.HandleFunc("/plugins/{id:[0-9]+}/state", h.ChangePluginState).Methods(http.MethodPost)
	api.HandleFunc("/index/{linkID:[0-9]+}", h.DeleteIndexEntry).Methods(http.MethodDelete)
	api.HandleFunc("/reindex", h.TriggerReindex).Methods(http.MethodPost)

	return r
}

func handleShutdown(srv *http.Server, adapter *indexer.Adapter, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Stopping indexer")
	adapter.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
