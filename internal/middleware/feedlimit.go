package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

type feedLimitKey struct{}

// FeedLimitFromContext returns the feed size requested for this request,
// if the feed limit interceptor set one.
func FeedLimitFromContext(ctx context.Context) (int, bool) {
	limit, ok := ctx.Value(feedLimitKey{}).(int)
	return limit, ok
}

// WithFeedLimit returns a context carrying a feed size.
func WithFeedLimit(ctx context.Context, limit int) context.Context {
	return context.WithValue(ctx, feedLimitKey{}, limit)
}

// FeedLimit sets the feed size of site search feed requests from their
// limit parameter. Requests below adminPrefix, other formats and requests
// without a numeric limit are passed through unchanged.
func FeedLimit(searchPath, adminPrefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminPrefix != "" && strings.HasPrefix(r.URL.Path, adminPrefix) {
				next.ServeHTTP(w, r)
				return
			}
			if r.URL.Path != searchPath {
				next.ServeHTTP(w, r)
				return
			}

			q := r.URL.Query()
			if q.Get("format") != "feed" || q.Get("limit") == "" {
				next.ServeHTTP(w, r)
				return
			}

			limit, err := strconv.Atoi(q.Get("limit"))
			if err != nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithFeedLimit(r.Context(), limit)))
		})
	}
}
