package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"jgfinder/internal/logging"
	"jgfinder/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database owns the SQLite connection shared by the gallery store, the
// search index and the extensions registry.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New creates a new Database instance.
// dbPath is the full path to the database FILE (e.g., "/database/jgfinder.db"),
// and the parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	-- Site users (image owners)
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		username TEXT NOT NULL UNIQUE
	);

	-- Gallery category tree
	CREATE TABLE IF NOT EXISTS gallery_categories (
		cid INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		alias TEXT NOT NULL DEFAULT '',
		parent_id INTEGER NOT NULL DEFAULT 0,
		published INTEGER NOT NULL DEFAULT 1,
		hidden INTEGER NOT NULL DEFAULT 0,
		in_hidden INTEGER NOT NULL DEFAULT 0,
		exclude_search INTEGER NOT NULL DEFAULT 0,
		access INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_categories_parent ON gallery_categories(parent_id);

	-- Gallery images
	CREATE TABLE IF NOT EXISTS gallery_images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		catid INTEGER NOT NULL DEFAULT 0,
		imgtitle TEXT NOT NULL,
		alias TEXT NOT NULL DEFAULT '',
		imgauthor TEXT NOT NULL DEFAULT '',
		imgtext TEXT NOT NULL DEFAULT '',
		imgdate INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		owner INTEGER NOT NULL DEFAULT 0,
		published INTEGER NOT NULL DEFAULT 1,
		hidden INTEGER NOT NULL DEFAULT 0,
		approved INTEGER NOT NULL DEFAULT 1,
		featured INTEGER NOT NULL DEFAULT 0,
		access INTEGER NOT NULL DEFAULT 1,
		metakey TEXT NOT NULL DEFAULT '',
		metadesc TEXT NOT NULL DEFAULT '',
		ordering INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_images_catid ON gallery_images(catid);
	CREATE INDEX IF NOT EXISTS idx_images_ordering ON gallery_images(ordering);

	-- Installed extensions (component and plugins)
	CREATE TABLE IF NOT EXISTS extensions (
		extension_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		element TEXT NOT NULL,
		folder TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 0,
		version TEXT NOT NULL DEFAULT '',
		UNIQUE(type, element, folder)
	);

	-- Search index content types
	CREATE TABLE IF NOT EXISTS finder_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL UNIQUE,
		mime TEXT NOT NULL DEFAULT ''
	);

	-- Search index links
	CREATE TABLE IF NOT EXISTS finder_links (
		link_id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		route TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		meta TEXT NOT NULL DEFAULT '',
		indexdate INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		published INTEGER NOT NULL DEFAULT 1,
		state INTEGER NOT NULL DEFAULT 1,
		access INTEGER NOT NULL DEFAULT 1,
		language TEXT NOT NULL DEFAULT '*',
		publish_start_date INTEGER,
		publish_end_date INTEGER,
		type_id INTEGER NOT NULL REFERENCES finder_types(id)
	);

	CREATE INDEX IF NOT EXISTS idx_links_type ON finder_links(type_id);
	CREATE INDEX IF NOT EXISTS idx_links_state_access ON finder_links(state, published, access);

	-- Full-text search over links
	CREATE VIRTUAL TABLE IF NOT EXISTS finder_links_fts USING fts5(
		title,
		description,
		body,
		meta,
		content='finder_links',
		content_rowid='link_id',
		tokenize='porter unicode61'
	);

	CREATE TRIGGER IF NOT EXISTS finder_links_ai AFTER INSERT ON finder_links BEGIN
		INSERT INTO finder_links_fts(rowid, title, description, body, meta)
		VALUES (new.link_id, new.title, new.description, new.body, new.meta);
	END;

	CREATE TRIGGER IF NOT EXISTS finder_links_ad AFTER DELETE ON finder_links BEGIN
		INSERT INTO finder_links_fts(finder_links_fts, rowid, title, description, body, meta)
		VALUES ('delete', old.link_id, old.title, old.description, old.body, old.meta);
	END;

	CREATE TRIGGER IF NOT EXISTS finder_links_au AFTER UPDATE OF title, description, body, meta ON finder_links BEGIN
		INSERT INTO finder_links_fts(finder_links_fts, rowid, title, description, body, meta)
		VALUES ('delete', old.link_id, old.title, old.description, old.body, old.meta);
		INSERT INTO finder_links_fts(rowid, title, description, body, meta)
		VALUES (new.link_id, new.title, new.description, new.body, new.meta);
	END;

	-- Taxonomy nodes, one per (branch, title)
	CREATE TABLE IF NOT EXISTS finder_taxonomy (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		branch TEXT NOT NULL,
		title TEXT NOT NULL,
		state INTEGER NOT NULL DEFAULT 1,
		access INTEGER NOT NULL DEFAULT 1,
		UNIQUE(branch, title)
	);

	CREATE TABLE IF NOT EXISTS finder_taxonomy_map (
		link_id INTEGER NOT NULL REFERENCES finder_links(link_id) ON DELETE CASCADE,
		node_id INTEGER NOT NULL REFERENCES finder_taxonomy(id) ON DELETE CASCADE,
		PRIMARY KEY (link_id, node_id)
	);

	CREATE INDEX IF NOT EXISTS idx_taxonomy_map_node ON finder_taxonomy_map(node_id);

	-- Metadata table
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	_, err := d.db.ExecContext(ctx, schema)
	if err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations applies database schema migrations
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: databases created before featured images were tracked
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('gallery_images')
		WHERE name='featured'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for featured column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding featured column to gallery_images table")

		_, err = d.db.ExecContext(ctx, `
			ALTER TABLE gallery_images ADD COLUMN featured INTEGER NOT NULL DEFAULT 0
		`)
		if err != nil {
			return fmt.Errorf("failed to add featured column: %w", err)
		}

		logging.Info("Migration complete: featured column added")
	}

	return nil
}

// DB returns the underlying connection pool.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping reports whether the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func (d *Database) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	d.mu.Lock()
	txStart := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	d.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(txStart).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(txStart).Seconds())
	return tx.Commit()
}

// GetStats returns current gallery and index counts for the metrics collector.
func (d *Database) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	start := time.Now()
	var stats metrics.Stats
	err := d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM gallery_images),
			(SELECT COUNT(*) FROM gallery_categories),
			(SELECT COUNT(*) FROM finder_links WHERE state = 1),
			(SELECT COUNT(*) FROM finder_links WHERE state <> 1)
	`).Scan(&stats.TotalImages, &stats.TotalCategories, &stats.VisibleLinks, &stats.HiddenLinks)
	RecordQuery("stats", start, err)
	if err != nil {
		logging.Warn("failed to collect database stats: %v", err)
	}
	return stats
}

// Vacuum optimizes the database.
func (d *Database) Vacuum(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { RecordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// RecordQuery records database query metrics.
func RecordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	logging.Debug("Database directory is writable")

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		p := dbPath + suffix
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only! Mode: %v - this will cause write failures", p, info.Mode())
			if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
				logging.Error("Failed to fix %s permissions: %v", p, chmodErr)
			} else {
				logging.Info("Fixed %s permissions", p)
			}
		}
	}

	return nil
}
