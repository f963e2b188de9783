package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"jgfinder/internal/finder"
	"jgfinder/internal/logging"
	"jgfinder/internal/middleware"
)

const (
	contentTypeRSS  = "application/rss+xml; charset=utf-8"
	contentTypeAtom = "application/atom+xml; charset=utf-8"
)

// Search runs a site search. With format=feed the results are rendered as
// an RSS feed, or Atom with type=atom; otherwise as JSON.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	asFeed := params.Get("format") == "feed"

	q := finder.Query{
		Terms:     strings.TrimSpace(params.Get("q")),
		MaxAccess: h.sessions.AccessLevel(r),
		Limit:     h.searchLimit(r, asFeed),
	}
	for _, raw := range params["t"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, r, http.StatusBadRequest, "invalid taxonomy id "+strconv.Quote(raw))
			return
		}
		q.Taxonomy = append(q.Taxonomy, id)
	}

	links, err := h.index.Search(r.Context(), q)
	if err != nil {
		internalError(w, r, "search failed", err)
		return
	}

	if !asFeed {
		respond(w, r, http.StatusOK, links)
		return
	}
	h.writeFeed(w, r, q.Terms, links)
}

// searchLimit returns the number of results for the request. Feed requests
// use the size set by the feed-limit middleware or the configured default.
func (h *Handlers) searchLimit(r *http.Request, asFeed bool) int {
	limit := h.feedLimit
	if asFeed {
		if n, ok := middleware.FeedLimitFromContext(r.Context()); ok {
			limit = n
		}
	} else if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}
	if limit > finder.MaxLimit {
		limit = finder.MaxLimit
	}
	return limit
}

func (h *Handlers) writeFeed(w http.ResponseWriter, r *http.Request, terms string, links []finder.Link) {
	feed := &feeds.Feed{
		Title:       "Search results",
		Link:        &feeds.Link{Href: h.siteURL + "/search"},
		Description: "Search results for " + strconv.Quote(terms),
		Created:     time.Now(),
	}
	for _, l := range links {
		link := h.absoluteURL(l.Route)
		created := l.PublishStart
		if created.IsZero() {
			created = l.IndexDate
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       l.Title,
			Link:        &feeds.Link{Href: link},
			Description: l.Description,
			Id:          link,
			Created:     created,
		})
	}

	var (
		body        string
		err         error
		contentType = contentTypeRSS
	)
	if r.URL.Query().Get("type") == "atom" {
		contentType = contentTypeAtom
		body, err = feed.ToAtom()
	} else {
		body, err = feed.ToRss()
	}
	if err != nil {
		internalError(w, r, "failed to render feed", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		logging.Error("failed to write search feed: %v", err)
	}
}

// absoluteURL joins a site-relative route to the site URL.
func (h *Handlers) absoluteURL(route string) string {
	if strings.HasPrefix(route, "http://") || strings.HasPrefix(route, "https://") {
		return route
	}
	return h.siteURL + "/" + strings.TrimPrefix(route, "/")
}
