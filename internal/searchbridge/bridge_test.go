package searchbridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/feeds"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jgfinder/internal/finder"
	"jgfinder/internal/messages"
	"jgfinder/internal/siteroute"
)

type fakeTaxonomy struct {
	id  int64
	err error
}

func (f fakeTaxonomy) FindTaxonomy(context.Context, string, string) (int64, error) {
	return f.id, f.err
}

func siteRoutes() *siteroute.Routes {
	r := mux.NewRouter()
	siteroute.Register(r, http.NotFoundHandler())
	return siteroute.New(r)
}

func rssFeed(t *testing.T, links ...string) string {
	t.Helper()
	feed := &feeds.Feed{
		Title:   "Search",
		Link:    &feeds.Link{Href: "http://example.test/search"},
		Created: time.Now(),
	}
	for _, l := range links {
		feed.Items = append(feed.Items, &feeds.Item{Title: l, Link: &feeds.Link{Href: l}})
	}
	out, err := feed.ToRss()
	require.NoError(t, err)
	return out
}

func newBridge(t *testing.T, srv *httptest.Server, tax TaxonomyFinder) *Bridge {
	t.Helper()
	b, err := New(Config{SiteURL: srv.URL, Limit: 50, Timeout: 2 * time.Second}, tax, siteRoutes())
	require.NoError(t, err)
	return b
}

func queueCtx() (context.Context, *messages.Queue) {
	q := messages.NewQueue()
	return messages.WithQueue(context.Background(), q), q
}

func TestSearchForwardsRequest(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFeed(t,
			"http://example.test/gallery/image/7",
			"http://example.test/index.php?option=com_joomgallery&view=image&id=3",
			"http://example.test/gallery/image/7",
			"http://example.test/blog/some-article",
		)))
	}))
	defer srv.Close()

	b := newBridge(t, srv, fakeTaxonomy{id: 12})
	ctx, q := queueCtx()

	ids, err := b.Search(ctx, "blue bird", []*http.Cookie{{Name: "jgfinder_session", Value: "abc"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 3}, ids)
	assert.Empty(t, q.Messages())

	require.NotNil(t, got)
	assert.Equal(t, "/search", got.URL.Path)
	assert.Equal(t, "blue bird", got.URL.Query().Get("q"))
	assert.Equal(t, "12", got.URL.Query().Get("t"))
	assert.Equal(t, "feed", got.URL.Query().Get("format"))
	assert.Equal(t, "50", got.URL.Query().Get("limit"))

	c, err := got.Cookie("jgfinder_session")
	require.NoError(t, err)
	assert.Equal(t, "abc", c.Value)
}

func TestSearchParsesAtom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feed := &feeds.Feed{Title: "Search", Link: &feeds.Link{Href: "http://example.test/"}, Created: time.Now()}
		feed.Items = []*feeds.Item{{Title: "a", Id: "1", Link: &feeds.Link{Href: "/gallery/image/21"}}}
		out, err := feed.ToAtom()
		require.NoError(t, err)
		_, _ = w.Write([]byte(out))
	}))
	defer srv.Close()

	ids, err := newBridge(t, srv, fakeTaxonomy{id: 1}).Search(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{21}, ids)
}

func TestFilterInclude(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rssFeed(t, "http://example.test/gallery/image/4", "http://example.test/gallery/image/9")))
	}))
	defer srv.Close()

	b := newBridge(t, srv, fakeTaxonomy{id: 1})

	filter, err := b.Filter(context.Background(), "x", nil, false)
	require.NoError(t, err)
	sql, args, err := filter.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "a.id IN (?,?)", sql)
	assert.Equal(t, []any{int64(4), int64(9)}, args)

	filter, err = b.Filter(context.Background(), "x", nil, true)
	require.NoError(t, err)
	sql, _, err = filter.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "a.id NOT IN (?,?)", sql)
}

func TestFilterNoMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rssFeed(t)))
	}))
	defer srv.Close()

	b := newBridge(t, srv, fakeTaxonomy{id: 1})
	ctx, q := queueCtx()

	filter, err := b.Filter(ctx, "nothing", nil, false)
	require.NoError(t, err)
	sql, _, _ := filter.ToSql()
	assert.Equal(t, "(1=0)", sql)
	assert.Empty(t, q.Messages())
}

func TestFilterFailures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		taxonomy fakeTaxonomy
		wantErr  error
		wantMsg  string
	}{
		{
			name: "non-200 response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "forbidden", http.StatusForbidden)
			},
			taxonomy: fakeTaxonomy{id: 1},
			wantErr:  ErrSearchFailed,
			wantMsg:  MsgSearchFailed,
		},
		{
			name: "unparseable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html><body>not a feed"))
			},
			taxonomy: fakeTaxonomy{id: 1},
			wantErr:  ErrSearchFailed,
			wantMsg:  MsgSearchFailed,
		},
		{
			name: "missing taxonomy",
			handler: func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected without a taxonomy node")
			},
			taxonomy: fakeTaxonomy{err: finder.ErrTaxonomyNotFound},
			wantErr:  finder.ErrTaxonomyNotFound,
			wantMsg:  MsgTaxonomyNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			b := newBridge(t, srv, tt.taxonomy)

			for _, exclude := range []bool{false, true} {
				ctx, q := queueCtx()
				filter, err := b.Filter(ctx, "x", nil, exclude)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

				sql, args, sqlErr := filter.ToSql()
				require.NoError(t, sqlErr)
				assert.Empty(t, args)
				if exclude {
					assert.Equal(t, "(1=1)", sql)
				} else {
					assert.Equal(t, "(1=0)", sql)
				}

				require.Len(t, q.Messages(), 1)
				assert.Equal(t, messages.TypeError, q.Messages()[0].Type)
				assert.Equal(t, tt.wantMsg, q.Messages()[0].Text)
			}
		})
	}
}

func TestSearchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	b := newBridge(t, srv, fakeTaxonomy{id: 1})
	srv.Close()

	_, err := b.Search(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrSearchFailed)
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New(Config{SiteURL: "/relative"}, fakeTaxonomy{}, siteRoutes())
	assert.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	b, err := New(Config{SiteURL: "http://example.test/site/"}, fakeTaxonomy{}, siteRoutes())
	require.NoError(t, err)
	assert.Equal(t, finder.DefaultLimit, b.limit)
	assert.Equal(t, "http://example.test/site/search?format=feed&limit=20&q=a+b&t=5", b.requestURL("a b", 5))
}

func TestSearchUnderBasePath(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/site/search" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(rssFeed(t,
			srv.URL+"/site/gallery/image/8",
			srv.URL+"/site/index.php?option=com_joomgallery&view=image&id=2",
		)))
	}))
	defer srv.Close()

	b, err := New(Config{SiteURL: srv.URL + "/site"}, fakeTaxonomy{id: 1}, siteRoutes())
	require.NoError(t, err)

	ids, err := b.Search(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{8, 2}, ids)
}
