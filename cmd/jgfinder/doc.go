// Package main is the jgfinder server.
//
// jgfinder keeps a gallery of images and categories in sync with a smart
// search index. Gallery changes are relayed to the search adapter, which
// recomputes every affected image's visibility and access from its full
// category chain. Gallery listings can be filtered by a site search: the
// search bridge queries the server's own search feed with the viewer's
// cookies and turns the result links back into image ids.
//
// # Startup
//
//  1. Configuration is read from the environment and an optional .env file
//  2. The SQLite database is opened and migrated
//  3. The gallery component and search plugins are registered
//  4. The search adapter is attached to the gallery event dispatcher
//  5. A full reindex runs in the background when INDEX_ON_START is set
//  6. The HTTP server starts; /readyz answers 200 once the reindex is done
//
// # Environment Variables
//
//   - PORT: HTTP port (default: 8080)
//   - DATABASE_DIR: directory of jgfinder.db (default: ./data)
//   - SITE_URL: public base URL, used for feed links and by the search bridge
//   - SESSION_KEY: cookie signing key; a random key is used when empty
//   - FEED_LIMIT: default number of search feed items (default: 20)
//   - SEARCH_LIMIT: number of results the bridge requests (default: 500)
//   - SEARCH_TIMEOUT: bridge request timeout (default: 10s)
//   - METRICS_ENABLED: serve /metrics (default: true)
//   - INDEX_ON_START: rebuild the index at startup (default: true)
//   - COMPONENT_ENABLED: initial state of the gallery component (default: true)
//   - LOG_LEVEL, LOG_FORMAT, LOG_HEALTH_CHECKS: logging
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the background reindex is cancelled, the metrics
// collector stopped and the HTTP server drained with a 30 second timeout.
//
// Build with the fts5 tag:
//
//	go build -tags 'fts5' -o jgfinder ./cmd/jgfinder
package main
