package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, op := range []string{"index", "remove", "change"} {
		IndexOperationsTotal.WithLabelValues(op, "success")
		IndexOperationsTotal.WithLabelValues(op, "error")
	}

	for _, trigger := range []string{"item_save", "item_state", "item_access", "category_save", "category_state", "category_access", "reindex"} {
		VisibilityRecomputations.WithLabelValues(trigger)
	}

	for _, state := range []string{"visible", "hidden"} {
		IndexedLinks.WithLabelValues(state)
	}

	for _, outcome := range []string{"ok", "http_error", "bad_status", "parse_error", "no_taxonomy"} {
		SearchBridgeRequestsTotal.WithLabelValues(outcome)
	}
}
