package finder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"jgfinder/internal/database"
	"jgfinder/internal/logging"
	"jgfinder/internal/metrics"
)

var (
	// ErrTaxonomyNotFound is returned when no taxonomy node matches.
	ErrTaxonomyNotFound = errors.New("finder: taxonomy node not found")
	// ErrLinkNotFound is returned when no link has the requested url.
	ErrLinkNotFound = errors.New("finder: link not found")
)

// Link properties that Change may update.
const (
	PropertyState     = "state"
	PropertyAccess    = "access"
	PropertyPublished = "published"
)

var changeable = map[string]bool{
	PropertyState:     true,
	PropertyAccess:    true,
	PropertyPublished: true,
}

// Index stores links and taxonomy in the shared database.
type Index struct {
	db *database.Database
	sb squirrel.StatementBuilderType
}

// New creates an Index on top of an open database.
func New(db *database.Database) *Index {
	return &Index{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

func recordOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IndexOperationsTotal.WithLabelValues(operation, status).Inc()
}

func unixOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

// Index adds or replaces the link for r.URL, together with its taxonomy
// mapping, and returns the link id.
func (x *Index) Index(ctx context.Context, r *Result) (int64, error) {
	const op = "finder.Index.Index"

	if r.URL == "" {
		return 0, fmt.Errorf("%s: result has no url", op)
	}
	if r.Type == "" {
		return 0, fmt.Errorf("%s: result has no type", op)
	}

	var linkID int64
	start := time.Now()
	err := x.db.WithTx(ctx, func(tx *sql.Tx) error {
		typeID, err := ensureType(ctx, tx, r.Type)
		if err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO finder_links (url, route, title, description, body, meta, indexdate,
				published, state, access, language, publish_start_date, publish_end_date, type_id)
			VALUES (?, ?, ?, ?, ?, ?, strftime('%s', 'now'), ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(url) DO UPDATE SET
				route = excluded.route,
				title = excluded.title,
				description = excluded.description,
				body = excluded.body,
				meta = excluded.meta,
				indexdate = excluded.indexdate,
				published = excluded.published,
				state = excluded.state,
				access = excluded.access,
				language = excluded.language,
				publish_start_date = excluded.publish_start_date,
				publish_end_date = excluded.publish_end_date,
				type_id = excluded.type_id
			RETURNING link_id
		`,
			r.URL, r.Route, r.Title, r.Description, r.Body, r.MetaText(),
			r.Published, r.State, r.Access, r.Language,
			unixOrNil(r.PublishStart), unixOrNil(r.PublishEnd), typeID,
		).Scan(&linkID)
		if err != nil {
			return fmt.Errorf("upsert link: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM finder_taxonomy_map WHERE link_id = ?", linkID); err != nil {
			return fmt.Errorf("clear taxonomy map: %w", err)
		}

		for _, n := range r.taxonomy {
			var nodeID int64
			err := tx.QueryRowContext(ctx, `
				INSERT INTO finder_taxonomy (branch, title, state, access)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(branch, title) DO UPDATE SET
					state = excluded.state,
					access = excluded.access
				RETURNING id
			`, n.Branch, n.Title, n.State, n.Access).Scan(&nodeID)
			if err != nil {
				return fmt.Errorf("upsert taxonomy %s/%s: %w", n.Branch, n.Title, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO finder_taxonomy_map (link_id, node_id) VALUES (?, ?)",
				linkID, nodeID,
			); err != nil {
				return fmt.Errorf("map taxonomy: %w", err)
			}
		}
		return nil
	})
	database.RecordQuery("index_link", start, err)
	recordOperation("index", err)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	logging.Debug("Indexed %s as link %d (state=%d access=%d)", r.URL, linkID, r.State, r.Access)
	return linkID, nil
}

// ensureType returns the id of the content type, creating it if needed.
func ensureType(ctx context.Context, tx *sql.Tx, title string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO finder_types (title) VALUES (?)
		ON CONFLICT(title) DO UPDATE SET title = excluded.title
		RETURNING id
	`, title).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure type %q: %w", title, err)
	}
	return id, nil
}

// Remove deletes a link by id. Removing an unknown link is not an error.
func (x *Index) Remove(ctx context.Context, linkID int64) error {
	const op = "finder.Index.Remove"

	query, args, err := x.sb.Delete("finder_links").
		Where(squirrel.Eq{"link_id": linkID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	_, err = x.db.DB().ExecContext(ctx, query, args...)
	database.RecordQuery("remove_link", start, err)
	recordOperation("remove", err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RemoveByURL deletes the link with the given url and reports whether one
// existed.
func (x *Index) RemoveByURL(ctx context.Context, url string) (bool, error) {
	const op = "finder.Index.RemoveByURL"

	query, args, err := x.sb.Delete("finder_links").
		Where(squirrel.Eq{"url": url}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	res, err := x.db.DB().ExecContext(ctx, query, args...)
	database.RecordQuery("remove_link", start, err)
	recordOperation("remove", err)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// RemoveByType deletes every link of a content type and returns how many
// were removed.
func (x *Index) RemoveByType(ctx context.Context, typeTitle string) (int64, error) {
	const op = "finder.Index.RemoveByType"

	query, args, err := x.sb.Delete("finder_links").
		Where("type_id IN (SELECT id FROM finder_types WHERE title = ?)", typeTitle).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	res, err := x.db.DB().ExecContext(ctx, query, args...)
	database.RecordQuery("remove_links_by_type", start, err)
	recordOperation("remove", err)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	logging.Info("Removed %d %q links from the search index", n, typeTitle)
	return n, nil
}

// Change updates one property (state, access or published) of the link
// with the given url. A missing link is left alone.
func (x *Index) Change(ctx context.Context, url, property string, value int) error {
	const op = "finder.Index.Change"

	if !changeable[property] {
		return fmt.Errorf("%s: unsupported property %q", op, property)
	}

	query, args, err := x.sb.Update("finder_links").
		Set(property, value).
		Where(squirrel.Eq{"url": url}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	_, err = x.db.DB().ExecContext(ctx, query, args...)
	database.RecordQuery("change_link", start, err)
	recordOperation("change", err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ChangeTaxonomy updates state and access of the node with the branch and
// title of n. A missing node is left alone.
func (x *Index) ChangeTaxonomy(ctx context.Context, n Node) error {
	const op = "finder.Index.ChangeTaxonomy"

	query, args, err := x.sb.Update("finder_taxonomy").
		Set("state", n.State).
		Set("access", n.Access).
		Where(squirrel.Eq{"branch": n.Branch, "title": n.Title}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	_, err = x.db.DB().ExecContext(ctx, query, args...)
	database.RecordQuery("change_taxonomy", start, err)
	recordOperation("change", err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LinkIDByURL returns the id of the link with the given url.
func (x *Index) LinkIDByURL(ctx context.Context, url string) (int64, error) {
	const op = "finder.Index.LinkIDByURL"

	query, args, err := x.sb.Select("link_id").
		From("finder_links").
		Where(squirrel.Eq{"url": url}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var id int64
	start := time.Now()
	err = x.db.DB().QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		database.RecordQuery("link_by_url", start, nil)
		return 0, ErrLinkNotFound
	}
	database.RecordQuery("link_by_url", start, err)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetLink returns the stored link with the given id.
func (x *Index) GetLink(ctx context.Context, linkID int64) (*Link, error) {
	const op = "finder.Index.GetLink"

	query, args, err := x.linkQuery().
		Where(squirrel.Eq{"l.link_id": linkID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	link, err := scanLink(x.db.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		database.RecordQuery("get_link", start, nil)
		return nil, ErrLinkNotFound
	}
	database.RecordQuery("get_link", start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return link, nil
}

// FindTaxonomy returns the id of the node with the given branch and title.
func (x *Index) FindTaxonomy(ctx context.Context, branch, title string) (int64, error) {
	const op = "finder.Index.FindTaxonomy"

	query, args, err := x.sb.Select("id").
		From("finder_taxonomy").
		Where(squirrel.Eq{"branch": branch, "title": title}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var id int64
	start := time.Now()
	err = x.db.DB().QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		database.RecordQuery("find_taxonomy", start, nil)
		return 0, ErrTaxonomyNotFound
	}
	database.RecordQuery("find_taxonomy", start, err)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// LinkTaxonomy returns the nodes a link is mapped to, ordered by branch.
func (x *Index) LinkTaxonomy(ctx context.Context, linkID int64) ([]Node, error) {
	const op = "finder.Index.LinkTaxonomy"

	query, args, err := x.sb.Select("t.branch", "t.title", "t.state", "t.access").
		From("finder_taxonomy_map AS m").
		Join("finder_taxonomy AS t ON t.id = m.node_id").
		Where(squirrel.Eq{"m.link_id": linkID}).
		OrderBy("t.branch", "t.title").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	rows, err := x.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		database.RecordQuery("link_taxonomy", start, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.Branch, &n.Title, &n.State, &n.Access); err != nil {
			database.RecordQuery("link_taxonomy", start, err)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		nodes = append(nodes, n)
	}
	err = rows.Err()
	database.RecordQuery("link_taxonomy", start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return nodes, nil
}

// URLsByType returns the url of every link of a content type.
func (x *Index) URLsByType(ctx context.Context, typeTitle string) ([]string, error) {
	const op = "finder.Index.URLsByType"

	query, args, err := x.sb.Select("l.url").
		From("finder_links AS l").
		Join("finder_types AS ty ON ty.id = l.type_id").
		Where(squirrel.Eq{"ty.title": typeTitle}).
		OrderBy("l.link_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	rows, err := x.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		database.RecordQuery("urls_by_type", start, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			database.RecordQuery("urls_by_type", start, err)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		urls = append(urls, u)
	}
	err = rows.Err()
	database.RecordQuery("urls_by_type", start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return urls, nil
}
