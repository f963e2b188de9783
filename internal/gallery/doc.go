// Package gallery stores images, categories and owners, and answers the
// queries the search adapter needs: the ancestor chain of a category, every
// image below a category and the indexable list joining images with their
// category and owner.
package gallery
