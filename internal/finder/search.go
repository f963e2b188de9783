package finder

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Masterminds/squirrel"

	"jgfinder/internal/database"
)

// Link is a stored index entry.
type Link struct {
	ID           int64     `json:"id"`
	URL          string    `json:"url"`
	Route        string    `json:"route"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	State        int       `json:"state"`
	Access       int       `json:"access"`
	Published    int       `json:"published"`
	Type         string    `json:"type"`
	PublishStart time.Time `json:"publishStart"`
	IndexDate    time.Time `json:"indexDate"`
}

// Query describes a search.
type Query struct {
	// Terms is the free text; empty matches every link passing the filters.
	Terms string
	// Taxonomy lists node ids the link must be mapped to, all of them.
	Taxonomy []int64
	// MaxAccess is the viewer's access level.
	MaxAccess int
	Limit     int
}

// Default and maximum search result counts.
const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

func (x *Index) linkQuery() squirrel.SelectBuilder {
	return x.sb.Select(
		"l.link_id", "l.url", "l.route", "l.title", "l.description",
		"l.state", "l.access", "l.published", "COALESCE(ty.title, '')",
		"COALESCE(l.publish_start_date, 0)", "l.indexdate",
	).
		From("finder_links AS l").
		LeftJoin("finder_types AS ty ON ty.id = l.type_id")
}

func scanLink(row interface{ Scan(dest ...any) error }) (*Link, error) {
	var l Link
	var publishStart, indexDate int64
	err := row.Scan(&l.ID, &l.URL, &l.Route, &l.Title, &l.Description,
		&l.State, &l.Access, &l.Published, &l.Type, &publishStart, &indexDate)
	if err != nil {
		return nil, err
	}
	if publishStart != 0 {
		l.PublishStart = time.Unix(publishStart, 0).UTC()
	}
	l.IndexDate = time.Unix(indexDate, 0).UTC()
	return &l, nil
}

// prepareSearchTerm turns free text into an FTS5 expression where every
// word must match. Each word is quoted so FTS5 operators in user input are
// treated as text.
func prepareSearchTerm(query string) string {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

// Search returns visible links matching q, best match first.
func (x *Index) Search(ctx context.Context, q Query) ([]Link, error) {
	const op = "finder.Index.Search"

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	sel := x.linkQuery().
		Where(squirrel.Eq{"l.state": 1, "l.published": 1}).
		Where(squirrel.LtOrEq{"l.access": q.MaxAccess}).
		Where(squirrel.Or{
			squirrel.Eq{"l.publish_end_date": nil},
			squirrel.GtOrEq{"l.publish_end_date": time.Now().Unix()},
		})

	for _, nodeID := range q.Taxonomy {
		sel = sel.Where(`EXISTS (
			SELECT 1 FROM finder_taxonomy_map m
			JOIN finder_taxonomy t ON t.id = m.node_id
			WHERE m.link_id = l.link_id AND m.node_id = ? AND t.state = 1 AND t.access <= ?
		)`, nodeID, q.MaxAccess)
	}

	if term := prepareSearchTerm(q.Terms); term != "" {
		sel = sel.
			Join("finder_links_fts ON finder_links_fts.rowid = l.link_id").
			Where("finder_links_fts MATCH ?", term).
			OrderBy("bm25(finder_links_fts)", "l.link_id")
	} else {
		sel = sel.OrderBy("l.indexdate DESC", "l.link_id")
	}

	query, args, err := sel.Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	rows, err := x.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		database.RecordQuery("search", start, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	links := []Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			database.RecordQuery("search", start, err)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		links = append(links, *l)
	}
	err = rows.Err()
	database.RecordQuery("search", start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return links, nil
}
