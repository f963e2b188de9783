// Package extensions is the registry of installed extensions: the gallery
// component and the three plugins that connect it to smart search.
package extensions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"jgfinder/internal/database"
)

// ErrNotFound is returned when no extension matches.
var ErrNotFound = errors.New("extensions: not found")

// Extension types.
const (
	TypeComponent = "component"
	TypePlugin    = "plugin"
)

// Key identifies an extension by type, element and folder.
type Key struct {
	Type    string
	Element string
	Folder  string
}

// Well-known extensions.
var (
	Component     = Key{Type: TypeComponent, Element: "com_joomgallery"}
	FinderPlugin  = Key{Type: TypePlugin, Element: "joomgallery", Folder: "finder"}
	GalleryPlugin = Key{Type: TypePlugin, Element: "finder", Folder: "joomgallery"}
	SystemPlugin  = Key{Type: TypePlugin, Element: "jgfinder", Folder: "system"}
)

// Extension is a row of the extensions table.
type Extension struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Element string `json:"element"`
	Folder  string `json:"folder"`
	Enabled bool   `json:"enabled"`
	Version string `json:"version"`
}

// Key returns the identifying key of the extension.
func (e Extension) Key() Key {
	return Key{Type: e.Type, Element: e.Element, Folder: e.Folder}
}

// Registry reads and writes the extensions table.
type Registry struct {
	db *database.Database
	sb squirrel.StatementBuilderType
}

// NewRegistry creates a Registry on top of an open database.
func NewRegistry(db *database.Database) *Registry {
	return &Registry{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

var columns = []string{"extension_id", "name", "type", "element", "folder", "enabled", "version"}

func scan(row interface{ Scan(dest ...any) error }) (*Extension, error) {
	var e Extension
	if err := row.Scan(&e.ID, &e.Name, &e.Type, &e.Element, &e.Folder, &e.Enabled, &e.Version); err != nil {
		return nil, err
	}
	return &e, nil
}

// Find returns the extension with the given key.
func (r *Registry) Find(ctx context.Context, k Key) (*Extension, error) {
	const op = "extensions.Registry.Find"

	query, args, err := r.sb.Select(columns...).
		From("extensions").
		Where(squirrel.Eq{"type": k.Type, "element": k.Element, "folder": k.Folder}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	e, err := scan(r.db.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		database.RecordQuery("find_extension", start, nil)
		return nil, ErrNotFound
	}
	database.RecordQuery("find_extension", start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

// IsEnabled reports whether the extension exists and is enabled.
func (r *Registry) IsEnabled(ctx context.Context, k Key) (bool, error) {
	e, err := r.Find(ctx, k)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.Enabled, nil
}

// Register inserts the extension or updates its name and version. The
// enabled flag of an existing row is kept.
func (r *Registry) Register(ctx context.Context, e *Extension) error {
	const op = "extensions.Registry.Register"

	query, args, err := r.sb.Insert("extensions").
		Columns("name", "type", "element", "folder", "enabled", "version").
		Values(e.Name, e.Type, e.Element, e.Folder, e.Enabled, e.Version).
		Suffix(`ON CONFLICT(type, element, folder) DO UPDATE SET
			name = excluded.name,
			version = excluded.version
			RETURNING extension_id, enabled`).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	err = r.db.DB().QueryRowContext(ctx, query, args...).Scan(&e.ID, &e.Enabled)
	database.RecordQuery("register_extension", start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetEnabled enables or disables an extension by id.
func (r *Registry) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	const op = "extensions.Registry.SetEnabled"

	query, args, err := r.sb.Update("extensions").
		Set("enabled", enabled).
		Where(squirrel.Eq{"extension_id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	res, err := r.db.DB().ExecContext(ctx, query, args...)
	database.RecordQuery("set_extension_enabled", start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every registered extension ordered by id.
func (r *Registry) List(ctx context.Context) ([]Extension, error) {
	const op = "extensions.Registry.List"

	query, args, err := r.sb.Select(columns...).From("extensions").OrderBy("extension_id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	rows, err := r.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		database.RecordQuery("list_extensions", start, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []Extension{}
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			database.RecordQuery("list_extensions", start, err)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *e)
	}
	err = rows.Err()
	database.RecordQuery("list_extensions", start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
