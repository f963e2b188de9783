// Package metrics defines the Prometheus metrics exported by jgfinder.
//
// Metrics are registered with promauto at package initialisation and cover:
//   - HTTP traffic (requests, duration, in-flight)
//   - Database queries
//   - Search index mutations and visibility recomputations
//   - Full reindex runs
//   - The search bridge (forwarded requests, outcome, matches)
//   - Gallery size, refreshed by a periodic Collector
//
// The /metrics endpoint is served by promhttp when METRICS_ENABLED is true.
package metrics
