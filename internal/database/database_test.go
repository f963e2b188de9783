package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB creates a database in a temporary directory.
func setupTestDB(t *testing.T) (*Database, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	return db, dbPath
}

// TestRecordQuery tests the RecordQuery helper function.
func TestRecordQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		operation string
		err       error
	}{
		{name: "successful query", operation: "test_operation"},
		{name: "failed query", operation: "test_operation", err: errors.New("test error")},
		{name: "empty operation name", operation: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start := time.Now()
			time.Sleep(1 * time.Millisecond)

			RecordQuery(tt.operation, start, tt.err)

			if time.Since(start) < 1*time.Millisecond {
				t.Error("RecordQuery should have measured non-zero duration")
			}
		})
	}
}

func TestDefaultTimeoutConstant(t *testing.T) {
	t.Parallel()

	if defaultTimeout != 5*time.Second {
		t.Errorf("defaultTimeout = %v, want 5s", defaultTimeout)
	}
}

func TestNewCreatesSchema(t *testing.T) {
	db, dbPath := setupTestDB(t)
	defer db.Close()

	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}

	tables := []string{
		"users", "gallery_categories", "gallery_images", "extensions",
		"finder_types", "finder_links", "finder_links_fts",
		"finder_taxonomy", "finder_taxonomy_map", "metadata",
	}
	for _, table := range tables {
		var name string
		err := db.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestNewIsIdempotent(t *testing.T) {
	db, dbPath := setupTestDB(t)
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	again, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("reopening database failed: %v", err)
	}
	defer again.Close()

	if err := again.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewFailsForMissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "test.db"))
	if err == nil {
		t.Error("expected error for missing database directory")
	}
}

func TestWithTxCommit(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO users (name, username) VALUES ('Alice', 'alice')")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	var count int
	if err := db.DB().QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 user after commit, got %d", count)
	}
}

func TestWithTxRollback(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	sentinel := errors.New("abort")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO users (name, username) VALUES ('Bob', 'bob')"); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithTx error = %v, want %v", err, sentinel)
	}

	var count int
	if err := db.DB().QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected rollback to discard insert, got %d users", count)
	}
}

func TestFTSTriggersFollowLinks(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	sqlDB := db.DB()
	mustExec(t, sqlDB, "INSERT INTO finder_types (title) VALUES ('Image (JoomGallery)')")
	mustExec(t, sqlDB, `INSERT INTO finder_links (url, title, description, type_id)
		VALUES ('index.php?option=com_joomgallery&view=image&id=1', 'Sunset over harbour', '', 1)`)

	if n := ftsCount(t, sqlDB, "harbour"); n != 1 {
		t.Errorf("expected 1 match after insert, got %d", n)
	}

	mustExec(t, sqlDB, "UPDATE finder_links SET title = 'Mountain lake' WHERE link_id = 1")
	if n := ftsCount(t, sqlDB, "harbour"); n != 0 {
		t.Errorf("expected stale term removed after update, got %d", n)
	}
	if n := ftsCount(t, sqlDB, "lake"); n != 1 {
		t.Errorf("expected 1 match for new title, got %d", n)
	}

	mustExec(t, sqlDB, "DELETE FROM finder_links WHERE link_id = 1")
	if n := ftsCount(t, sqlDB, "lake"); n != 0 {
		t.Errorf("expected no match after delete, got %d", n)
	}
}

func TestGetStats(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	sqlDB := db.DB()
	mustExec(t, sqlDB, "INSERT INTO gallery_categories (name) VALUES ('Landscapes')")
	mustExec(t, sqlDB, "INSERT INTO gallery_images (catid, imgtitle) VALUES (1, 'One'), (1, 'Two')")
	mustExec(t, sqlDB, "INSERT INTO finder_types (title) VALUES ('Image (JoomGallery)')")
	mustExec(t, sqlDB, "INSERT INTO finder_links (url, state, type_id) VALUES ('a', 1, 1), ('b', 0, 1)")

	stats := db.GetStats()
	if stats.TotalImages != 2 || stats.TotalCategories != 1 {
		t.Errorf("unexpected gallery counts: %+v", stats)
	}
	if stats.VisibleLinks != 1 || stats.HiddenLinks != 1 {
		t.Errorf("unexpected link counts: %+v", stats)
	}

	db.UpdateDBMetrics()
}

func mustExec(t *testing.T, db *sql.DB, query string) {
	t.Helper()
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func ftsCount(t *testing.T, db *sql.DB, term string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM finder_links_fts WHERE finder_links_fts MATCH ?", term).Scan(&n); err != nil {
		t.Fatalf("fts query: %v", err)
	}
	return n
}

func BenchmarkRecordQuery(b *testing.B) {
	start := time.Now()
	for i := 0; i < b.N; i++ {
		RecordQuery("benchmark_operation", start, nil)
	}
}
