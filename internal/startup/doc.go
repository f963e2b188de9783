// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables by [LoadConfig], after
// loading a .env file from the working directory when one exists:
//
//   - PORT: HTTP server port (default: 8080)
//   - DATABASE_DIR: Directory of the SQLite database (default: ./data)
//   - SITE_URL: Base url the search bridge sends feed requests to (default: http://localhost:8080)
//   - SESSION_KEY: Cookie signing key; random per process when unset
//   - SESSION_SECURE: Mark session cookies Secure (default: false)
//   - FEED_LIMIT: Default number of items in a search feed (default: 20)
//   - SEARCH_LIMIT: Number of results the search bridge requests (default: 500)
//   - SEARCH_TIMEOUT: Timeout of a forwarded search as Go duration (default: 10s)
//   - METRICS_ENABLED: Serve Prometheus metrics on /metrics (default: true)
//   - INDEX_ON_START: Run a full reindex in the background at startup (default: true)
//   - COMPONENT_ENABLED: Initial enabled state of the gallery component (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_FORMAT: text or json (default: text)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Startup Logging
//
// The package prints a banner and logs each startup phase in sections so
// the server log shows the effective configuration at a glance.
package startup
