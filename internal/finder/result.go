package finder

import (
	"strings"
	"time"
)

// Taxonomy branches used by content adapters.
const (
	BranchType     = "Type"
	BranchAuthor   = "Author"
	BranchOwner    = "Owner"
	BranchCategory = "Category"
)

// Node is a taxonomy node a link is mapped to.
type Node struct {
	Branch string `json:"branch"`
	Title  string `json:"title"`
	State  int    `json:"state"`
	Access int    `json:"access"`
}

// Result describes one item to be indexed.
type Result struct {
	URL          string
	Route        string
	Path         string
	Title        string
	Description  string
	Body         string
	Language     string
	Type         string
	State        int
	Access       int
	Published    int
	PublishStart time.Time
	PublishEnd   time.Time

	meta         map[string]string
	instructions []string
	taxonomy     []Node
}

// NewResult returns a Result with the index defaults: visible, published,
// public access and all languages.
func NewResult() *Result {
	return &Result{
		Language:  "*",
		State:     1,
		Access:    1,
		Published: 1,
		meta:      make(map[string]string),
	}
}

// SetMeta stores a named value that instructions may pull into the index.
func (r *Result) SetMeta(name, value string) {
	r.meta[name] = value
}

// AddInstruction asks the indexer to include the named meta value in the
// searchable meta text.
func (r *Result) AddInstruction(name string) {
	for _, existing := range r.instructions {
		if existing == name {
			return
		}
	}
	r.instructions = append(r.instructions, name)
}

// AddTaxonomy maps the result to a taxonomy node. Re-adding the same node
// replaces its state and access.
func (r *Result) AddTaxonomy(branch, title string, state, access int) {
	for i, n := range r.taxonomy {
		if n.Branch == branch && n.Title == title {
			r.taxonomy[i].State = state
			r.taxonomy[i].Access = access
			return
		}
	}
	r.taxonomy = append(r.taxonomy, Node{Branch: branch, Title: title, State: state, Access: access})
}

// Taxonomy returns the nodes the result is mapped to.
func (r *Result) Taxonomy() []Node {
	return r.taxonomy
}

// Instructions returns the meta names included in the searchable text.
func (r *Result) Instructions() []string {
	return r.instructions
}

// MetaText joins the instructed meta values in instruction order.
func (r *Result) MetaText() string {
	parts := make([]string, 0, len(r.instructions))
	for _, name := range r.instructions {
		if v := strings.TrimSpace(r.meta[name]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
