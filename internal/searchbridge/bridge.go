package searchbridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/mmcdole/gofeed"

	"jgfinder/internal/finder"
	"jgfinder/internal/indexer"
	"jgfinder/internal/logging"
	"jgfinder/internal/messages"
	"jgfinder/internal/metrics"
)

// Messages shown to the viewer when a search cannot be forwarded.
const (
	MsgTaxonomyNotFound = "Search taxonomy not found: gallery images are not indexed yet"
	MsgSearchFailed     = "Search request failed"
)

// ImageColumn is the listing query column the filter applies to.
const ImageColumn = "a.id"

// ErrSearchFailed is returned when the search feed could not be fetched
// or parsed.
var ErrSearchFailed = errors.New("searchbridge: search request failed")

// TaxonomyFinder looks up taxonomy node ids.
type TaxonomyFinder interface {
	FindTaxonomy(ctx context.Context, branch, title string) (int64, error)
}

// Reverser extracts an image id from a result link.
type Reverser interface {
	Reverse(link string) (int64, bool)
}

// Config configures a Bridge.
type Config struct {
	// SiteURL is the base url of the site serving the search feed.
	SiteURL string
	// Limit is the number of results requested from the feed.
	Limit int
	// Timeout bounds one forwarded request.
	Timeout time.Duration
}

// Bridge forwards gallery searches to the search feed.
type Bridge struct {
	client   *http.Client
	endpoint *url.URL
	basePath string
	limit    int
	taxonomy TaxonomyFinder
	routes   Reverser
}

// New creates a Bridge.
func New(cfg Config, taxonomy TaxonomyFinder, routes Reverser) (*Bridge, error) {
	base, err := url.Parse(cfg.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("searchbridge: invalid site url %q: %w", cfg.SiteURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("searchbridge: site url %q must be absolute", cfg.SiteURL)
	}

	if base.Path == "" {
		base.Path = "/"
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = finder.DefaultLimit
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Bridge{
		client:   &http.Client{Timeout: timeout},
		endpoint: base.JoinPath("search"),
		basePath: strings.TrimSuffix(base.Path, "/"),
		limit:    limit,
		taxonomy: taxonomy,
		routes:   routes,
	}, nil
}

// Filter forwards query and returns the matching condition on ImageColumn,
// NOT IN when exclude is set. On failure the returned filter is still
// usable and matches no image (include) or every image (exclude); the
// error is returned and a message is queued on ctx.
func (b *Bridge) Filter(ctx context.Context, query string, cookies []*http.Cookie, exclude bool) (squirrel.Sqlizer, error) {
	ids, err := b.Search(ctx, query, cookies)
	if err != nil {
		ids = nil
	}
	if exclude {
		return squirrel.NotEq{ImageColumn: nonNil(ids)}, err
	}
	return squirrel.Eq{ImageColumn: nonNil(ids)}, err
}

// nonNil keeps squirrel rendering an empty list as a constant condition.
func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// Search forwards query to the search feed and returns the ids of the
// gallery images in the result, in feed order.
func (b *Bridge) Search(ctx context.Context, query string, cookies []*http.Cookie) ([]int64, error) {
	queue := messages.FromContext(ctx)

	typeID, err := b.taxonomy.FindTaxonomy(ctx, finder.BranchType, indexer.TypeTitle)
	if err != nil {
		metrics.SearchBridgeRequestsTotal.WithLabelValues("no_taxonomy").Inc()
		queue.Error(MsgTaxonomyNotFound)
		return nil, err
	}

	start := time.Now()
	feed, outcome, err := b.fetch(ctx, query, typeID, cookies)
	metrics.SearchBridgeDuration.Observe(time.Since(start).Seconds())
	metrics.SearchBridgeRequestsTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		logging.Warn("Forwarded search for %q failed: %v", query, err)
		queue.Error(MsgSearchFailed)
		return nil, err
	}

	ids := b.extractIDs(feed)
	metrics.SearchBridgeMatches.Observe(float64(len(ids)))
	logging.Debug("Forwarded search for %q matched %d images", query, len(ids))
	return ids, nil
}

// requestURL returns the search feed url for query restricted to the
// type taxonomy node.
func (b *Bridge) requestURL(query string, typeID int64) string {
	u := *b.endpoint
	v := url.Values{}
	v.Set("q", query)
	v.Set("t", strconv.FormatInt(typeID, 10))
	v.Set("format", "feed")
	v.Set("limit", strconv.Itoa(b.limit))
	u.RawQuery = v.Encode()
	return u.String()
}

func (b *Bridge) fetch(ctx context.Context, query string, typeID int64, cookies []*http.Cookie) (*gofeed.Feed, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.requestURL(query, typeID), nil)
	if err != nil {
		return nil, "http_error", fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, "http_error", fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "bad_status", fmt.Errorf("%w: status %d", ErrSearchFailed, resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, "parse_error", fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	return feed, "ok", nil
}

// extractIDs reads image ids from the item links, skipping links that do
// not point at an image and duplicates.
func (b *Bridge) extractIDs(feed *gofeed.Feed) []int64 {
	ids := make([]int64, 0, len(feed.Items))
	seen := make(map[int64]bool, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		if link == "" {
			continue
		}
		id, ok := b.routes.Reverse(b.stripBase(link))
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// stripBase removes the site base path from a link so it can be matched
// against the site routes.
func (b *Bridge) stripBase(link string) string {
	if b.basePath == "" {
		return link
	}
	u, err := url.Parse(link)
	if err != nil || !strings.HasPrefix(u.Path, b.basePath+"/") {
		return link
	}
	u.Path = strings.TrimPrefix(u.Path, b.basePath)
	u.RawPath = ""
	return u.String()
}
