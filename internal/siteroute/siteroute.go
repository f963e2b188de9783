// Package siteroute builds and reverses the public URLs of gallery images.
//
// An image has two URLs: the canonical non-SEF form
// index.php?option=com_joomgallery&view=image&id=N, used as the search index
// key, and the SEF route /gallery/image/N served by the router.
package siteroute

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/gorilla/mux"
)

// Route names registered on the site router.
const (
	RouteImage  = "image"
	RouteSearch = "search"
	RouteLegacy = "legacy"
)

const (
	option    = "com_joomgallery"
	imageView = "image"
)

// ImageURL returns the canonical non-SEF url of an image.
func ImageURL(id int64) string {
	return fmt.Sprintf("index.php?option=%s&view=%s&id=%d", option, imageView, id)
}

// ImageRoute returns the SEF path of an image.
func ImageRoute(id int64) string {
	return "/gallery/image/" + strconv.FormatInt(id, 10)
}

// ImageID returns the id of a non-SEF image url as built by ImageURL.
func ImageID(link string) (int64, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return 0, false
	}
	return fromQuery(u)
}

// Register adds the named image detail routes to r.
func Register(r *mux.Router, image http.Handler) {
	r.Handle("/gallery/image/{id:[0-9]+}", image).Methods(http.MethodGet).Name(RouteImage)
	r.Handle("/index.php", image).Methods(http.MethodGet).
		Queries("option", option, "view", imageView, "id", "{id:[0-9]+}").
		Name(RouteLegacy)
}

// Routes builds and reverses image URLs through a site router.
type Routes struct {
	router *mux.Router
}

// New wraps a router on which Register has been called.
func New(r *mux.Router) *Routes {
	return &Routes{router: r}
}

// Build returns the SEF path of an image as generated by the router.
func (rt *Routes) Build(id int64) (string, error) {
	route := rt.router.Get(RouteImage)
	if route == nil {
		return "", fmt.Errorf("siteroute: route %q not registered", RouteImage)
	}
	u, err := route.URL("id", strconv.FormatInt(id, 10))
	if err != nil {
		return "", fmt.Errorf("siteroute: build image route: %w", err)
	}
	return u.Path, nil
}

// Reverse extracts the image id from a link. Non-SEF links are read from
// the query string; SEF links are matched against the router. It reports
// false when the link does not point at a gallery image.
func (rt *Routes) Reverse(link string) (int64, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return 0, false
	}

	if id, ok := fromQuery(u); ok {
		return id, true
	}

	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: u.Path}, Host: u.Host}
	var match mux.RouteMatch
	if !rt.router.Match(req, &match) || match.Route == nil || match.Route.GetName() != RouteImage {
		return 0, false
	}
	return parseID(match.Vars["id"])
}

// fromQuery reads the id of a non-SEF image link.
func fromQuery(u *url.URL) (int64, bool) {
	q := u.Query()
	if q.Get("option") != option || q.Get("view") != imageView {
		return 0, false
	}
	if base := path.Base(u.Path); base != "index.php" && base != "." && base != "/" {
		return 0, false
	}
	return parseID(q.Get("id"))
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
