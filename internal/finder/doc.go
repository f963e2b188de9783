// Package finder is the site's smart search index.
//
// Content adapters describe each item as a Result (url, route, text,
// state, access, taxonomy) and hand it to Index. Links live in SQLite with
// an FTS5 table for the text and a taxonomy map used for filtering. Search
// returns only links that are visible, published, within the viewer's
// access level and mapped to every requested taxonomy node.
package finder
