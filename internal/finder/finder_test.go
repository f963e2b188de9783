package finder

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jgfinder/internal/database"
)

const imageType = "Image (JoomGallery)"

func newTestIndex(t *testing.T) *Index {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "finder.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(db)
}

func imageResult(id int, title string) *Result {
	r := NewResult()
	r.URL = "index.php?option=com_joomgallery&view=image&id=" + itoa(id)
	r.Route = "/gallery/image/" + itoa(id)
	r.Title = title
	r.Type = imageType
	r.AddTaxonomy(BranchType, imageType, 1, 1)
	return r
}

func itoa(i int) string {
	return fmt.Sprint(i)
}

func TestIndexAndSearch(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	sunset := imageResult(1, "Sunset over the harbour")
	sunset.SetMeta("metakey", "boats, evening")
	sunset.AddInstruction("metakey")
	_, err := x.Index(ctx, sunset)
	require.NoError(t, err)

	_, err = x.Index(ctx, imageResult(2, "Mountain lake"))
	require.NoError(t, err)

	links, err := x.Search(ctx, Query{Terms: "harbour", MaxAccess: 1})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, sunset.URL, links[0].URL)
	assert.Equal(t, imageType, links[0].Type)

	links, err = x.Search(ctx, Query{Terms: "boats", MaxAccess: 1})
	require.NoError(t, err)
	assert.Len(t, links, 1, "meta instructions should be searchable")

	links, err = x.Search(ctx, Query{MaxAccess: 1})
	require.NoError(t, err)
	assert.Len(t, links, 2, "empty terms match every visible link")
}

func TestIndexReplacesExistingLink(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	first, err := x.Index(ctx, imageResult(1, "Old title"))
	require.NoError(t, err)

	r := imageResult(1, "New title")
	r.AddTaxonomy(BranchAuthor, "Ansel", 1, 1)
	second, err := x.Index(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	links, err := x.Search(ctx, Query{Terms: "old", MaxAccess: 1})
	require.NoError(t, err)
	assert.Empty(t, links)

	nodes, err := x.LinkTaxonomy(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, []Node{
		{Branch: BranchAuthor, Title: "Ansel", State: 1, Access: 1},
		{Branch: BranchType, Title: imageType, State: 1, Access: 1},
	}, nodes)
}

func TestIndexRequiresURLAndType(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	_, err := x.Index(ctx, NewResult())
	assert.Error(t, err)

	r := NewResult()
	r.URL = "x"
	_, err = x.Index(ctx, r)
	assert.Error(t, err)
}

func TestSearchHonoursStateAccessAndPublished(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	hidden := imageResult(1, "hidden river")
	hidden.State = 0
	special := imageResult(2, "special river")
	special.Access = 3
	disabled := imageResult(3, "disabled river")
	disabled.Published = 0
	expired := imageResult(4, "expired river")
	expired.PublishEnd = time.Now().Add(-time.Hour)
	public := imageResult(5, "public river")

	for _, r := range []*Result{hidden, special, disabled, expired, public} {
		_, err := x.Index(ctx, r)
		require.NoError(t, err)
	}

	links, err := x.Search(ctx, Query{Terms: "river", MaxAccess: 1})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, public.URL, links[0].URL)

	links, err = x.Search(ctx, Query{Terms: "river", MaxAccess: 3})
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestSearchTaxonomyFilter(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	img := imageResult(1, "red kite")
	_, err := x.Index(ctx, img)
	require.NoError(t, err)

	article := NewResult()
	article.URL = "index.php?option=com_content&view=article&id=1"
	article.Title = "red kite article"
	article.Type = "Article"
	article.AddTaxonomy(BranchType, "Article", 1, 1)
	_, err = x.Index(ctx, article)
	require.NoError(t, err)

	typeNode, err := x.FindTaxonomy(ctx, BranchType, imageType)
	require.NoError(t, err)

	links, err := x.Search(ctx, Query{Terms: "kite", Taxonomy: []int64{typeNode}, MaxAccess: 1})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, img.URL, links[0].URL)

	_, err = x.FindTaxonomy(ctx, BranchType, "Contact")
	assert.ErrorIs(t, err, ErrTaxonomyNotFound)
}

func TestSearchHiddenTaxonomyNodeExcludes(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	r := imageResult(1, "owl")
	r.AddTaxonomy(BranchCategory, "Birds", 0, 1)
	_, err := x.Index(ctx, r)
	require.NoError(t, err)

	node, err := x.FindTaxonomy(ctx, BranchCategory, "Birds")
	require.NoError(t, err)

	links, err := x.Search(ctx, Query{Terms: "owl", Taxonomy: []int64{node}, MaxAccess: 1})
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestChange(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	r := imageResult(1, "heron")
	id, err := x.Index(ctx, r)
	require.NoError(t, err)

	require.NoError(t, x.Change(ctx, r.URL, PropertyState, 0))
	require.NoError(t, x.Change(ctx, r.URL, PropertyAccess, 2))

	link, err := x.GetLink(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, link.State)
	assert.Equal(t, 2, link.Access)

	assert.Error(t, x.Change(ctx, r.URL, "title", 1))
	assert.NoError(t, x.Change(ctx, "missing", PropertyState, 1))
}

func TestRemoveVariants(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	a := imageResult(1, "a")
	b := imageResult(2, "b")
	c := imageResult(3, "c")
	idA, err := x.Index(ctx, a)
	require.NoError(t, err)
	_, err = x.Index(ctx, b)
	require.NoError(t, err)
	_, err = x.Index(ctx, c)
	require.NoError(t, err)

	require.NoError(t, x.Remove(ctx, idA))
	_, err = x.LinkIDByURL(ctx, a.URL)
	assert.ErrorIs(t, err, ErrLinkNotFound)

	removed, err := x.RemoveByURL(ctx, b.URL)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = x.RemoveByURL(ctx, b.URL)
	require.NoError(t, err)
	assert.False(t, removed)

	urls, err := x.URLsByType(ctx, imageType)
	require.NoError(t, err)
	assert.Equal(t, []string{c.URL}, urls)

	n, err := x.RemoveByType(ctx, imageType)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	links, err := x.Search(ctx, Query{MaxAccess: 10})
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestResultMetaText(t *testing.T) {
	t.Parallel()

	r := NewResult()
	r.SetMeta("metakey", "sea")
	r.SetMeta("owner", "Jane")
	r.SetMeta("author", "")
	r.AddInstruction("metakey")
	r.AddInstruction("author")
	r.AddInstruction("owner")
	r.AddInstruction("metakey")

	assert.Equal(t, []string{"metakey", "author", "owner"}, r.Instructions())
	assert.Equal(t, "sea Jane", r.MetaText())
}

func TestAddTaxonomyReplacesSameNode(t *testing.T) {
	t.Parallel()

	r := NewResult()
	r.AddTaxonomy(BranchCategory, "Birds", 1, 1)
	r.AddTaxonomy(BranchCategory, "Birds", 0, 2)

	require.Len(t, r.Taxonomy(), 1)
	assert.Equal(t, Node{Branch: BranchCategory, Title: "Birds", State: 0, Access: 2}, r.Taxonomy()[0])
}

func TestPrepareSearchTerm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"harbour", `"harbour"`},
		{"red kite", `"red" "kite"`},
		{`sunset" OR *`, `"sunset" "OR"`},
		{"Zürich 2024", `"Zürich" "2024"`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, prepareSearchTerm(tt.in))
		})
	}
}
