package visibility

// Indexer states.
const (
	StateHidden  = 0
	StateVisible = 1
)

// Native flag values used by the gallery tables.
const (
	Published  = 1
	Approved   = 1
	NotHidden  = 0
	NotExclude = 0
)

// ItemFlags holds the publishing flags of a single image.
type ItemFlags struct {
	Published int
	Hidden    int
	Approved  int
	Access    int
}

// CategoryFlags holds the publishing flags of a single category.
type CategoryFlags struct {
	ID            int64
	ParentID      int64
	Published     int
	Hidden        int
	InHidden      int
	ExcludeSearch int
	Access        int
}

// Ancestry is the fold of every ancestor above a category.
type Ancestry struct {
	Hidden      bool
	Excluded    bool
	Unpublished bool
	Access      int
	Depth       int
}

// Aggregate folds the ancestor chain of a category. The slice must not
// contain the category itself.
func Aggregate(ancestors []CategoryFlags) Ancestry {
	var a Ancestry
	for _, c := range ancestors {
		if c.Hidden != NotHidden {
			a.Hidden = true
		}
		if c.ExcludeSearch != NotExclude {
			a.Excluded = true
		}
		if c.Published != Published {
			a.Unpublished = true
		}
		if c.Access > a.Access {
			a.Access = c.Access
		}
		a.Depth++
	}
	return a
}

// Blocks reports whether anything in the ancestry hides its descendants.
func (a Ancestry) Blocks() bool {
	return a.Hidden || a.Excluded || a.Unpublished
}

// itemVisible checks the image's own flags.
func itemVisible(item ItemFlags) bool {
	return item.Published == Published &&
		item.Approved == Approved &&
		item.Hidden == NotHidden
}

// categoryVisible checks the flags of the immediate category.
func categoryVisible(cat CategoryFlags) bool {
	return cat.Published == Published &&
		cat.Hidden == NotHidden &&
		cat.InHidden == NotHidden &&
		cat.ExcludeSearch == NotExclude
}

// State returns the indexer state of an image.
func State(item ItemFlags, cat CategoryFlags, anc Ancestry) int {
	if !itemVisible(item) || !categoryVisible(cat) || anc.Blocks() {
		return StateHidden
	}
	return StateVisible
}

// Access returns the effective access level of an image.
func Access(item ItemFlags, cat CategoryFlags, anc Ancestry) int {
	return max(item.Access, cat.Access, anc.Access)
}

// Translate computes state and access of an image from its flags and its
// category chain. chain[0] is the image's own category, followed by its
// ancestors up to the root. An image without a category is never visible.
func Translate(item ItemFlags, chain []CategoryFlags) (state, access int) {
	if len(chain) == 0 {
		return StateHidden, item.Access
	}
	anc := Aggregate(chain[1:])
	return State(item, chain[0], anc), Access(item, chain[0], anc)
}

// CategoryState returns the state of a category node on its own, as used for
// the category taxonomy of an indexed image.
func CategoryState(chain []CategoryFlags) int {
	if len(chain) == 0 {
		return StateHidden
	}
	if !categoryVisible(chain[0]) || Aggregate(chain[1:]).Blocks() {
		return StateHidden
	}
	return StateVisible
}

// CategoryAccess returns the effective access level of a category node.
func CategoryAccess(chain []CategoryFlags) int {
	if len(chain) == 0 {
		return 0
	}
	return max(chain[0].Access, Aggregate(chain[1:]).Access)
}
