package indexer

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/mock"

	"jgfinder/internal/extensions"
	"jgfinder/internal/finder"
	"jgfinder/internal/gallery"
	"jgfinder/internal/visibility"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetImage(ctx context.Context, id int64) (*gallery.Image, error) {
	args := m.Called(ctx, id)
	img, _ := args.Get(0).(*gallery.Image)
	return img, args.Error(1)
}

func (m *mockStore) GetCategory(ctx context.Context, id int64) (*gallery.Category, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*gallery.Category)
	return c, args.Error(1)
}

func (m *mockStore) CategoryChain(ctx context.Context, id int64) ([]visibility.CategoryFlags, error) {
	args := m.Called(ctx, id)
	chain, _ := args.Get(0).([]visibility.CategoryFlags)
	return chain, args.Error(1)
}

func (m *mockStore) DescendantVisibility(ctx context.Context, catID int64) ([]gallery.ImageVisibility, error) {
	args := m.Called(ctx, catID)
	items, _ := args.Get(0).([]gallery.ImageVisibility)
	return items, args.Error(1)
}

func (m *mockStore) GetIndexable(ctx context.Context, id int64) (*gallery.IndexableImage, error) {
	args := m.Called(ctx, id)
	it, _ := args.Get(0).(*gallery.IndexableImage)
	return it, args.Error(1)
}

func (m *mockStore) ListIndexable(ctx context.Context, where squirrel.Sqlizer) ([]gallery.IndexableImage, error) {
	args := m.Called(ctx, where)
	items, _ := args.Get(0).([]gallery.IndexableImage)
	return items, args.Error(1)
}

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Index(ctx context.Context, r *finder.Result) (int64, error) {
	args := m.Called(ctx, r)
	return int64(args.Int(0)), args.Error(1)
}

func (m *mockIndex) Remove(ctx context.Context, linkID int64) error {
	return m.Called(ctx, linkID).Error(0)
}

func (m *mockIndex) RemoveByURL(ctx context.Context, url string) (bool, error) {
	args := m.Called(ctx, url)
	return args.Bool(0), args.Error(1)
}

func (m *mockIndex) RemoveByType(ctx context.Context, typeTitle string) (int64, error) {
	args := m.Called(ctx, typeTitle)
	return int64(args.Int(0)), args.Error(1)
}

func (m *mockIndex) Change(ctx context.Context, url, property string, value int) error {
	return m.Called(ctx, url, property, value).Error(0)
}

func (m *mockIndex) ChangeTaxonomy(ctx context.Context, n finder.Node) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockIndex) URLsByType(ctx context.Context, typeTitle string) ([]string, error) {
	args := m.Called(ctx, typeTitle)
	urls, _ := args.Get(0).([]string)
	return urls, args.Error(1)
}

type mockExtensions struct {
	mock.Mock
}

func (m *mockExtensions) Find(ctx context.Context, k extensions.Key) (*extensions.Extension, error) {
	args := m.Called(ctx, k)
	e, _ := args.Get(0).(*extensions.Extension)
	return e, args.Error(1)
}

func (m *mockExtensions) IsEnabled(ctx context.Context, k extensions.Key) (bool, error) {
	args := m.Called(ctx, k)
	return args.Bool(0), args.Error(1)
}
