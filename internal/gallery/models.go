package gallery

import (
	"time"

	"jgfinder/internal/visibility"
)

// Image is a gallery image row.
type Image struct {
	ID        int64     `json:"id"`
	CatID     int64     `json:"catid"`
	Title     string    `json:"title"`
	Alias     string    `json:"alias"`
	Author    string    `json:"author,omitempty"`
	Text      string    `json:"text,omitempty"`
	Date      time.Time `json:"date"`
	Owner     int64     `json:"owner,omitempty"`
	Published int       `json:"published"`
	Hidden    int       `json:"hidden"`
	Approved  int       `json:"approved"`
	Featured  int       `json:"featured"`
	Access    int       `json:"access"`
	MetaKey   string    `json:"metakey,omitempty"`
	MetaDesc  string    `json:"metadesc,omitempty"`
	Ordering  int       `json:"ordering"`
}

// Flags returns the publishing flags of the image.
func (i Image) Flags() visibility.ItemFlags {
	return visibility.ItemFlags{
		Published: i.Published,
		Hidden:    i.Hidden,
		Approved:  i.Approved,
		Access:    i.Access,
	}
}

// Category is a node of the gallery category tree. ParentID 0 is the root.
type Category struct {
	ID            int64  `json:"id"`
	ParentID      int64  `json:"parentId"`
	Name          string `json:"name"`
	Alias         string `json:"alias"`
	Published     int    `json:"published"`
	Hidden        int    `json:"hidden"`
	InHidden      int    `json:"inHidden"`
	ExcludeSearch int    `json:"excludeSearch"`
	Access        int    `json:"access"`
}

// Flags returns the publishing flags of the category.
func (c Category) Flags() visibility.CategoryFlags {
	return visibility.CategoryFlags{
		ID:            c.ID,
		ParentID:      c.ParentID,
		Published:     c.Published,
		Hidden:        c.Hidden,
		InHidden:      c.InHidden,
		ExcludeSearch: c.ExcludeSearch,
		Access:        c.Access,
	}
}

// IndexableImage is an image joined with its category and owner, as read
// by the search adapter.
type IndexableImage struct {
	Image
	Category  string
	CatState  int
	CatAccess int
	OwnerName string
}

// User is a site user that can own images.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}
