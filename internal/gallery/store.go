package gallery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"jgfinder/internal/database"
	"jgfinder/internal/visibility"
)

var (
	// ErrNotFound is returned when an image or category does not exist.
	ErrNotFound = errors.New("gallery: not found")
	// ErrDuplicate is returned when a unique value is already taken.
	ErrDuplicate = errors.New("gallery: duplicate")
)

// maxTreeDepth bounds recursive category walks so a corrupted parent loop
// cannot recurse forever.
const maxTreeDepth = 64

var imageColumns = []string{
	"a.id", "a.catid", "a.imgtitle", "a.alias", "a.imgauthor", "a.imgtext",
	"a.imgdate", "a.owner", "a.published", "a.hidden", "a.approved",
	"a.featured", "a.access", "a.metakey", "a.metadesc", "a.ordering",
}

var categoryColumns = []string{
	"cid", "parent_id", "name", "alias", "published", "hidden",
	"in_hidden", "exclude_search", "access",
}

// imageFields are the columns a state change may touch.
var imageFields = map[string]bool{
	"published": true,
	"hidden":    true,
	"approved":  true,
}

// Store reads and writes gallery rows.
type Store struct {
	db *database.Database
	sb squirrel.StatementBuilderType
}

// NewStore creates a Store on top of an open database.
func NewStore(db *database.Database) *Store {
	return &Store{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// ListOptions narrows an image listing.
type ListOptions struct {
	// Filter is an extra WHERE fragment on alias a, e.g. the search filter.
	Filter squirrel.Sqlizer
	// MaxAccess hides images whose effective access, the highest level of
	// the image and its category chain, is above it when > 0.
	MaxAccess int
	// PublishedOnly keeps only images whose own flags and category chain
	// make them visible.
	PublishedOnly bool
	Limit         uint64
	Offset        uint64
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ImageVisibility holds the inputs of visibility.Translate for one image.
type ImageVisibility struct {
	ID    int64
	Item  visibility.ItemFlags
	Chain []visibility.CategoryFlags
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner, extra ...any) (*Image, error) {
	var img Image
	var date int64
	dest := []any{
		&img.ID, &img.CatID, &img.Title, &img.Alias, &img.Author, &img.Text,
		&date, &img.Owner, &img.Published, &img.Hidden, &img.Approved,
		&img.Featured, &img.Access, &img.MetaKey, &img.MetaDesc, &img.Ordering,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	img.Date = time.Unix(date, 0).UTC()
	return &img, nil
}

func scanCategory(row rowScanner) (*Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.ParentID, &c.Name, &c.Alias, &c.Published,
		&c.Hidden, &c.InHidden, &c.ExcludeSearch, &c.Access)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateUser inserts a user and sets its ID.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	const op = "gallery.Store.CreateUser"

	query, args, err := s.sb.Insert("users").
		Columns("name", "username").
		Values(u.Name, u.Username).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.insert(ctx, "create_user", query, args)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%s: username %q: %w", op, u.Username, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	u.ID = id
	return nil
}

// CreateCategory inserts a category and sets its ID.
func (s *Store) CreateCategory(ctx context.Context, c *Category) error {
	const op = "gallery.Store.CreateCategory"

	query, args, err := s.sb.Insert("gallery_categories").
		Columns("parent_id", "name", "alias", "published", "hidden", "in_hidden", "exclude_search", "access").
		Values(c.ParentID, c.Name, c.Alias, c.Published, c.Hidden, c.InHidden, c.ExcludeSearch, c.Access).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.insert(ctx, "create_category", query, args)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.ID = id
	return nil
}

// GetCategory loads one category.
func (s *Store) GetCategory(ctx context.Context, id int64) (*Category, error) {
	const op = "gallery.Store.GetCategory"

	query, args, err := s.sb.Select(categoryColumns...).
		From("gallery_categories").
		Where(squirrel.Eq{"cid": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	c, err := scanCategory(s.db.DB().QueryRowContext(ctx, query, args...))
	database.RecordQuery("get_category", start, ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// UpdateCategory writes every column of an existing category.
func (s *Store) UpdateCategory(ctx context.Context, c *Category) error {
	const op = "gallery.Store.UpdateCategory"

	if c.ParentID == c.ID {
		return fmt.Errorf("%s: category %d cannot be its own parent", op, c.ID)
	}

	query, args, err := s.sb.Update("gallery_categories").
		Set("parent_id", c.ParentID).
		Set("name", c.Name).
		Set("alias", c.Alias).
		Set("published", c.Published).
		Set("hidden", c.Hidden).
		Set("in_hidden", c.InHidden).
		Set("exclude_search", c.ExcludeSearch).
		Set("access", c.Access).
		Where(squirrel.Eq{"cid": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return s.execOne(ctx, op, "update_category", query, args)
}

// SetCategoriesPublished changes the published flag of several categories.
func (s *Store) SetCategoriesPublished(ctx context.Context, ids []int64, value int) error {
	const op = "gallery.Store.SetCategoriesPublished"

	if len(ids) == 0 {
		return nil
	}

	query, args, err := s.sb.Update("gallery_categories").
		Set("published", value).
		Where(squirrel.Eq{"cid": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	_, err = s.db.DB().ExecContext(ctx, query, args...)
	database.RecordQuery("set_categories_published", start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CategoryChain returns the category followed by its ancestors up to the
// root, in one recursive query. An unknown id yields an empty chain.
func (s *Store) CategoryChain(ctx context.Context, id int64) ([]visibility.CategoryFlags, error) {
	const op = "gallery.Store.CategoryChain"

	start := time.Now()
	chain, err := categoryChain(ctx, s.db.DB(), id)
	database.RecordQuery("category_chain", start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return chain, nil
}

const chainQuery = `
	WITH RECURSIVE chain(cid, parent_id, published, hidden, in_hidden, exclude_search, access, depth) AS (
		SELECT cid, parent_id, published, hidden, in_hidden, exclude_search, access, 0
		FROM gallery_categories WHERE cid = ?
		UNION ALL
		SELECT c.cid, c.parent_id, c.published, c.hidden, c.in_hidden, c.exclude_search, c.access, chain.depth + 1
		FROM gallery_categories c
		JOIN chain ON c.cid = chain.parent_id
		WHERE chain.parent_id <> 0 AND chain.depth < ?
	)
	SELECT cid, parent_id, published, hidden, in_hidden, exclude_search, access
	FROM chain ORDER BY depth
	`

func categoryChain(ctx context.Context, q querier, id int64) ([]visibility.CategoryFlags, error) {
	rows, err := q.QueryContext(ctx, chainQuery, id, maxTreeDepth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chain []visibility.CategoryFlags
	for rows.Next() {
		var f visibility.CategoryFlags
		if err := rows.Scan(&f.ID, &f.ParentID, &f.Published, &f.Hidden, &f.InHidden, &f.ExcludeSearch, &f.Access); err != nil {
			return nil, err
		}
		chain = append(chain, f)
	}
	return chain, rows.Err()
}

// DescendantVisibility reads, in one transaction, the flags and category
// chain of every image in the category or below it.
func (s *Store) DescendantVisibility(ctx context.Context, catID int64) ([]ImageVisibility, error) {
	const op = "gallery.Store.DescendantVisibility"

	query := `
	WITH RECURSIVE tree(cid, depth) AS (
		SELECT cid, 0 FROM gallery_categories WHERE cid = ?
		UNION
		SELECT c.cid, tree.depth + 1
		FROM gallery_categories c
		JOIN tree ON c.parent_id = tree.cid
		WHERE tree.depth < ?
	)
	SELECT DISTINCT a.id, a.catid, a.published, a.hidden, a.approved, a.access
	FROM gallery_images a
	JOIN tree ON a.catid = tree.cid
	ORDER BY a.id
	`

	var out []ImageVisibility
	start := time.Now()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, catID, maxTreeDepth)
		if err != nil {
			return err
		}
		var catIDs []int64
		for rows.Next() {
			var iv ImageVisibility
			var cid int64
			if err := rows.Scan(&iv.ID, &cid, &iv.Item.Published, &iv.Item.Hidden, &iv.Item.Approved, &iv.Item.Access); err != nil {
				rows.Close()
				return err
			}
			out = append(out, iv)
			catIDs = append(catIDs, cid)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		chains := make(map[int64][]visibility.CategoryFlags)
		for i, cid := range catIDs {
			chain, ok := chains[cid]
			if !ok {
				chain, err = categoryChain(ctx, tx, cid)
				if err != nil {
					return err
				}
				chains[cid] = chain
			}
			out[i].Chain = chain
		}
		return nil
	})
	database.RecordQuery("descendant_visibility", start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// CreateImage inserts an image and sets its ID.
func (s *Store) CreateImage(ctx context.Context, img *Image) error {
	const op = "gallery.Store.CreateImage"

	if img.Date.IsZero() {
		img.Date = time.Now().UTC().Truncate(time.Second)
	}

	query, args, err := s.sb.Insert("gallery_images").
		Columns("catid", "imgtitle", "alias", "imgauthor", "imgtext", "imgdate", "owner",
			"published", "hidden", "approved", "featured", "access", "metakey", "metadesc", "ordering").
		Values(img.CatID, img.Title, img.Alias, img.Author, img.Text, img.Date.Unix(), img.Owner,
			img.Published, img.Hidden, img.Approved, img.Featured, img.Access, img.MetaKey, img.MetaDesc, img.Ordering).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.insert(ctx, "create_image", query, args)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	img.ID = id
	return nil
}

// GetImage loads one image.
func (s *Store) GetImage(ctx context.Context, id int64) (*Image, error) {
	const op = "gallery.Store.GetImage"

	query, args, err := s.sb.Select(imageColumns...).
		From("gallery_images AS a").
		Where(squirrel.Eq{"a.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	img, err := scanImage(s.db.DB().QueryRowContext(ctx, query, args...))
	database.RecordQuery("get_image", start, ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return img, nil
}

// UpdateImage writes every column of an existing image.
func (s *Store) UpdateImage(ctx context.Context, img *Image) error {
	const op = "gallery.Store.UpdateImage"

	query, args, err := s.sb.Update("gallery_images").
		Set("catid", img.CatID).
		Set("imgtitle", img.Title).
		Set("alias", img.Alias).
		Set("imgauthor", img.Author).
		Set("imgtext", img.Text).
		Set("imgdate", img.Date.Unix()).
		Set("owner", img.Owner).
		Set("published", img.Published).
		Set("hidden", img.Hidden).
		Set("approved", img.Approved).
		Set("featured", img.Featured).
		Set("access", img.Access).
		Set("metakey", img.MetaKey).
		Set("metadesc", img.MetaDesc).
		Set("ordering", img.Ordering).
		Set("updated_at", squirrel.Expr("strftime('%s', 'now')")).
		Where(squirrel.Eq{"id": img.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return s.execOne(ctx, op, "update_image", query, args)
}

// DeleteImage removes an image.
func (s *Store) DeleteImage(ctx context.Context, id int64) error {
	const op = "gallery.Store.DeleteImage"

	query, args, err := s.sb.Delete("gallery_images").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return s.execOne(ctx, op, "delete_image", query, args)
}

// SetImagesField sets published, hidden or approved on several images.
func (s *Store) SetImagesField(ctx context.Context, ids []int64, field string, value int) error {
	const op = "gallery.Store.SetImagesField"

	if !imageFields[field] {
		return fmt.Errorf("%s: unsupported field %q", op, field)
	}
	if len(ids) == 0 {
		return nil
	}

	query, args, err := s.sb.Update("gallery_images").
		Set(field, value).
		Set("updated_at", squirrel.Expr("strftime('%s', 'now')")).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	_, err = s.db.DB().ExecContext(ctx, query, args...)
	database.RecordQuery("set_images_field", start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// indexableQuery joins images with their category and owner.
func (s *Store) indexableQuery() squirrel.SelectBuilder {
	cols := append([]string{}, imageColumns...)
	cols = append(cols,
		"COALESCE(c.name, '')",
		"COALESCE(c.published, 0)",
		"COALESCE(c.access, 0)",
		"COALESCE(u.name, '')",
	)
	return s.sb.Select(cols...).
		From("gallery_images AS a").
		LeftJoin("gallery_categories AS c ON c.cid = a.catid").
		LeftJoin("users AS u ON u.id = a.owner")
}

// ListIndexable returns images joined with category and owner. A nil where
// returns every image.
func (s *Store) ListIndexable(ctx context.Context, where squirrel.Sqlizer) ([]IndexableImage, error) {
	const op = "gallery.Store.ListIndexable"

	q := s.indexableQuery().OrderBy("a.id")
	if where != nil {
		q = q.Where(where)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		database.RecordQuery("list_indexable", start, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var items []IndexableImage
	for rows.Next() {
		var it IndexableImage
		img, err := scanImage(rows, &it.Category, &it.CatState, &it.CatAccess, &it.OwnerName)
		if err != nil {
			database.RecordQuery("list_indexable", start, err)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		it.Image = *img
		items = append(items, it)
	}
	err = rows.Err()
	database.RecordQuery("list_indexable", start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

// GetIndexable loads one image joined with its category and owner.
func (s *Store) GetIndexable(ctx context.Context, id int64) (*IndexableImage, error) {
	items, err := s.ListIndexable(ctx, squirrel.Eq{"a.id": id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

// categoryVisibilityCTE walks the category tree from the roots down and
// yields, per category, whether its images can be visible and the highest
// access level on its chain. It agrees with visibility.Translate: ancestors
// block through published, hidden and exclude_search, the category itself
// also through in_hidden.
const categoryVisibilityCTE = `
	WITH RECURSIVE category_visibility(cid, blocks, visible, access, depth) AS (
		SELECT c.cid,
			c.published <> 1 OR c.hidden <> 0 OR c.exclude_search <> 0,
			c.published = 1 AND c.hidden = 0 AND c.in_hidden = 0 AND c.exclude_search = 0,
			c.access, 0
		FROM gallery_categories c
		WHERE c.parent_id = 0
			OR NOT EXISTS (SELECT 1 FROM gallery_categories p WHERE p.cid = c.parent_id)
		UNION ALL
		SELECT c.cid,
			v.blocks OR c.published <> 1 OR c.hidden <> 0 OR c.exclude_search <> 0,
			NOT v.blocks AND c.published = 1 AND c.hidden = 0 AND c.in_hidden = 0 AND c.exclude_search = 0,
			MAX(c.access, v.access), v.depth + 1
		FROM gallery_categories c
		JOIN category_visibility v ON c.parent_id = v.cid
		WHERE c.parent_id <> 0 AND v.depth < ?
	)`

// ListImages returns images matching opts, ordered by ordering then id.
func (s *Store) ListImages(ctx context.Context, opts ListOptions) ([]Image, error) {
	const op = "gallery.Store.ListImages"

	q := s.sb.Select(imageColumns...).
		From("gallery_images AS a").
		OrderBy("a.ordering", "a.id")
	if opts.Filter != nil {
		q = q.Where(opts.Filter)
	}
	if opts.MaxAccess > 0 || opts.PublishedOnly {
		q = q.Prefix(categoryVisibilityCTE, maxTreeDepth).
			LeftJoin("category_visibility AS v ON v.cid = a.catid")
	}
	if opts.MaxAccess > 0 {
		q = q.Where("MAX(a.access, COALESCE(v.access, 0)) <= ?", opts.MaxAccess)
	}
	if opts.PublishedOnly {
		q = q.Where(squirrel.Eq{
			"a.published": visibility.Published,
			"a.approved":  visibility.Approved,
			"a.hidden":    visibility.NotHidden,
			"v.visible":   visibility.StateVisible,
		})
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit).Offset(opts.Offset)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		database.RecordQuery("list_images", start, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	images := []Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			database.RecordQuery("list_images", start, err)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		images = append(images, *img)
	}
	err = rows.Err()
	database.RecordQuery("list_images", start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return images, nil
}

func (s *Store) insert(ctx context.Context, operation, query string, args []any) (int64, error) {
	start := time.Now()
	res, err := s.db.DB().ExecContext(ctx, query, args...)
	database.RecordQuery(operation, start, err)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// execOne runs a statement that must touch exactly one row.
func (s *Store) execOne(ctx context.Context, op, operation, query string, args []any) error {
	start := time.Now()
	res, err := s.db.DB().ExecContext(ctx, query, args...)
	database.RecordQuery(operation, start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
