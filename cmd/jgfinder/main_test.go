package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jgfinder/internal/database"
	"jgfinder/internal/extensions"
	"jgfinder/internal/handlers"
	"jgfinder/internal/startup"
)

func routeSet(t *testing.T, r *mux.Router) map[string]bool {
	t.Helper()
	routes, err := startup.GetRoutes(r)
	require.NoError(t, err)

	set := make(map[string]bool, len(routes))
	for _, rt := range routes {
		set[rt.Method+" "+rt.Path] = true
	}
	return set
}

func TestSetupRouter(t *testing.T) {
	h := handlers.New(handlers.Deps{}, &startup.Config{})
	routes := routeSet(t, setupRouter(mux.NewRouter(), h, true))

	for _, want := range []string{
		"GET /health",
		"GET /healthz",
		"GET /livez",
		"GET /readyz",
		"GET /version",
		"GET /metrics",
		"GET /search",
		"POST /session/access",
		"GET /gallery/image/{id:[0-9]+}",
		"GET /index.php",
		"GET /api/images",
		"POST /api/images",
		"PUT /api/images/{id:[0-9]+}",
		"DELETE /api/images/{id:[0-9]+}",
		"GET /api/images/{id:[0-9]+}/index",
		"POST /api/users",
		"POST /api/images/state",
		"POST /api/categories",
		"PUT /api/categories/{id:[0-9]+}",
		"POST /api/categories/state",
		"POST /api/plugins/{id:[0-9]+}/state",
		"DELETE /api/index/{linkID:[0-9]+}",
		"POST /api/reindex",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestSetupRouterWithoutMetrics(t *testing.T) {
	h := handlers.New(handlers.Deps{}, &startup.Config{})
	routes := routeSet(t, setupRouter(mux.NewRouter(), h, false))
	assert.False(t, routes["GET /metrics"])
	assert.True(t, routes["GET /health"])
}

func TestLivenessThroughRouter(t *testing.T) {
	h := handlers.New(handlers.Deps{}, &startup.Config{})
	r := setupRouter(mux.NewRouter(), h, false)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, "/livez", nil))
		assert.Equal(t, http.StatusOK, rec.Code, method)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterExtensions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(t.TempDir(), "jgfinder.db"))
	require.NoError(t, err)
	defer db.Close()
	registry := extensions.NewRegistry(db)

	require.NoError(t, registerExtensions(ctx, registry, false))

	list, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)

	enabled, err := registry.IsEnabled(ctx, extensions.Component)
	require.NoError(t, err)
	assert.False(t, enabled)

	for _, k := range []extensions.Key{extensions.FinderPlugin, extensions.GalleryPlugin, extensions.SystemPlugin} {
		enabled, err := registry.IsEnabled(ctx, k)
		require.NoError(t, err)
		assert.True(t, enabled, k.Element)
	}

	// The flag only applies to the first insert.
	require.NoError(t, registerExtensions(ctx, registry, true))
	enabled, err = registry.IsEnabled(ctx, extensions.Component)
	require.NoError(t, err)
	assert.False(t, enabled)

	list, err = registry.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 4)
}
