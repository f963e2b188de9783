package siteroute

import (
	"net/http"
	"testing"

	"github.com/gorilla/mux"
)

func newRoutes() *Routes {
	r := mux.NewRouter()
	Register(r, http.NotFoundHandler())
	r.HandleFunc("/search", func(http.ResponseWriter, *http.Request) {}).Name(RouteSearch)
	return New(r)
}

func TestImageURLAndRoute(t *testing.T) {
	t.Parallel()

	if got := ImageURL(12); got != "index.php?option=com_joomgallery&view=image&id=12" {
		t.Errorf("ImageURL(12) = %q", got)
	}
	if got := ImageRoute(12); got != "/gallery/image/12" {
		t.Errorf("ImageRoute(12) = %q", got)
	}
}

func TestBuildMatchesImageRoute(t *testing.T) {
	t.Parallel()

	rt := newRoutes()
	got, err := rt.Build(99)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got != ImageRoute(99) {
		t.Errorf("Build(99) = %q, want %q", got, ImageRoute(99))
	}
}

func TestBuildWithoutRoute(t *testing.T) {
	t.Parallel()

	rt := New(mux.NewRouter())
	if _, err := rt.Build(1); err == nil {
		t.Error("expected error when image route is not registered")
	}
}

func TestReverse(t *testing.T) {
	t.Parallel()

	rt := newRoutes()

	tests := []struct {
		name   string
		link   string
		wantID int64
		wantOK bool
	}{
		{"non-SEF relative", "index.php?option=com_joomgallery&view=image&id=5", 5, true},
		{"non-SEF absolute", "http://example.test/index.php?option=com_joomgallery&view=image&id=17", 17, true},
		{"non-SEF reordered", "/index.php?id=8&view=image&option=com_joomgallery", 8, true},
		{"SEF relative", "/gallery/image/42", 42, true},
		{"SEF absolute", "https://example.test/gallery/image/7", 7, true},
		{"other component", "index.php?option=com_content&view=article&id=5", 0, false},
		{"other view", "index.php?option=com_joomgallery&view=category&id=5", 0, false},
		{"missing id", "index.php?option=com_joomgallery&view=image", 0, false},
		{"zero id", "/gallery/image/0", 0, false},
		{"search route", "/search?q=x", 0, false},
		{"unknown path", "/blog/post/3", 0, false},
		{"garbage", "%zz", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, ok := rt.Reverse(tt.link)
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("Reverse(%q) = (%d, %v), want (%d, %v)", tt.link, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestImageID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		link   string
		wantID int64
		wantOK bool
	}{
		{ImageURL(42), 42, true},
		{"index.php?option=com_joomgallery&view=category&id=42", 0, false},
		{"index.php?option=com_content&view=image&id=42", 0, false},
		{"index.php?option=com_joomgallery&view=image&id=0", 0, false},
		{"/gallery/image/42", 0, false},
		{"%zz", 0, false},
	}

	for _, tt := range tests {
		id, ok := ImageID(tt.link)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("ImageID(%q) = %d, %v; want %d, %v", tt.link, id, ok, tt.wantID, tt.wantOK)
		}
	}
}
