// Package handlers provides the HTTP handlers of the jgfinder server.
//
// It includes handlers for:
//   - Gallery images and categories, dispatching save, delete and state
//     change events to the search adapter
//   - Extension state, index entry removal and full reindex
//   - The search feed (RSS and Atom) and the image detail routes
//   - The viewer session access level
//   - Health checks, version and application stats
//
// JSON responses carry the request's queued messages under "messages".
package handlers
