// Package searchbridge turns a free-text gallery search into a SQL filter.
//
// The query is forwarded to the site's own search feed with the viewer's
// cookies, so the search index applies the viewer's access level. Image
// ids are read back from the feed item links and returned as an IN or
// NOT IN condition on a.id for the gallery listing query.
//
// A failed search never yields a partial condition: the filter matches
// nothing in include mode and everything in exclude mode, and a message
// is queued for the viewer.
package searchbridge
