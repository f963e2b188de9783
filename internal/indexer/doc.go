// Package indexer keeps the smart search index in sync with the gallery.
//
// The Adapter listens to gallery events:
//   - image save, upload and delete update or remove the image's link
//   - publish and approve tasks recompute the image's indexer state
//   - category saves and state changes cascade to every image below the
//     category, recomputing state and access from the full ancestor chain
//   - disabling the search plugin removes every gallery image
//
// IndexAll rebuilds every gallery link in batches, removes links whose
// image is gone and reports progress through GetHealthStatus. Nothing is
// indexed while the gallery component is disabled.
package indexer
