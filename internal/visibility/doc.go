// Package visibility translates gallery publishing flags into the two values
// the search index understands: a binary indexer state and an effective
// access level.
//
// An image is visible in search only when the image itself is published,
// approved and not hidden, and its category and every ancestor category up
// to the root are published, not hidden and not excluded from search. The
// effective access level is the most restrictive (highest) level found on
// the image, its category and the ancestor chain.
package visibility
