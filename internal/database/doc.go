// Package database owns the SQLite connection and schema shared by the
// gallery store, the search index and the extensions registry.
//
// The schema covers:
//   - Gallery images, categories and owners
//   - Search index links, types and taxonomy, with an FTS5 table kept in
//     sync by triggers
//   - Installed extensions
//   - Key/value metadata (last reindex time)
//
// The database uses WAL mode and foreign keys. go-sqlite3 must be built
// with the fts5 tag.
package database
