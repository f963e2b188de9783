package visibility

import "testing"

func visibleItem() ItemFlags {
	return ItemFlags{Published: 1, Hidden: 0, Approved: 1, Access: 1}
}

func visibleCategory(id, parent int64) CategoryFlags {
	return CategoryFlags{ID: id, ParentID: parent, Published: 1, Access: 1}
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		item       ItemFlags
		chain      []CategoryFlags
		wantState  int
		wantAccess int
	}{
		{
			name:       "everything visible",
			item:       visibleItem(),
			chain:      []CategoryFlags{visibleCategory(2, 1), visibleCategory(1, 0)},
			wantState:  StateVisible,
			wantAccess: 1,
		},
		{
			name:       "unpublished item",
			item:       ItemFlags{Published: 0, Approved: 1, Access: 1},
			chain:      []CategoryFlags{visibleCategory(2, 0)},
			wantState:  StateHidden,
			wantAccess: 1,
		},
		{
			name:       "archived item is not published",
			item:       ItemFlags{Published: 2, Approved: 1, Access: 1},
			chain:      []CategoryFlags{visibleCategory(2, 0)},
			wantState:  StateHidden,
			wantAccess: 1,
		},
		{
			name:       "hidden item",
			item:       ItemFlags{Published: 1, Hidden: 1, Approved: 1, Access: 1},
			chain:      []CategoryFlags{visibleCategory(2, 0)},
			wantState:  StateHidden,
			wantAccess: 1,
		},
		{
			name:       "rejected item",
			item:       ItemFlags{Published: 1, Approved: -1, Access: 1},
			chain:      []CategoryFlags{visibleCategory(2, 0)},
			wantState:  StateHidden,
			wantAccess: 1,
		},
		{
			name:       "unapproved item",
			item:       ItemFlags{Published: 1, Approved: 0, Access: 1},
			chain:      []CategoryFlags{visibleCategory(2, 0)},
			wantState:  StateHidden,
			wantAccess: 1,
		},
		{
			name:       "category in hidden branch",
			item:       visibleItem(),
			chain:      []CategoryFlags{{ID: 2, Published: 1, InHidden: 1, Access: 1}},
			wantState:  StateHidden,
			wantAccess: 1,
		},
		{
			name:       "category excluded from search",
			item:       visibleItem(),
			chain:      []CategoryFlags{{ID: 2, Published: 1, ExcludeSearch: 1, Access: 1}},
			wantState:  StateHidden,
			wantAccess: 1,
		},
		{
			name: "grandparent unpublished",
			item: visibleItem(),
			chain: []CategoryFlags{
				visibleCategory(3, 2),
				visibleCategory(2, 1),
				{ID: 1, Published: 0, Access: 1},
			},
			wantState:  StateHidden,
			wantAccess: 1,
		},
		{
			name: "ancestor access raises effective access",
			item: visibleItem(),
			chain: []CategoryFlags{
				visibleCategory(3, 2),
				{ID: 2, ParentID: 1, Published: 1, Access: 3},
				visibleCategory(1, 0),
			},
			wantState:  StateVisible,
			wantAccess: 3,
		},
		{
			name:       "item access above categories",
			item:       ItemFlags{Published: 1, Approved: 1, Access: 5},
			chain:      []CategoryFlags{{ID: 2, Published: 1, Access: 2}},
			wantState:  StateVisible,
			wantAccess: 5,
		},
		{
			name:       "no category",
			item:       visibleItem(),
			chain:      nil,
			wantState:  StateHidden,
			wantAccess: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			state, access := Translate(tt.item, tt.chain)
			if state != tt.wantState {
				t.Errorf("state = %d, want %d", state, tt.wantState)
			}
			if access != tt.wantAccess {
				t.Errorf("access = %d, want %d", access, tt.wantAccess)
			}
		})
	}
}

// TestTranslateAllFlagCombinations checks the rule against a direct
// evaluation for every combination of the flags it reads.
func TestTranslateAllFlagCombinations(t *testing.T) {
	t.Parallel()

	values := []int{-1, 0, 1, 2}
	bits := []int{0, 1}

	for _, published := range values {
		for _, approved := range values {
			for _, hidden := range bits {
				for _, catPublished := range bits {
					for _, catHidden := range bits {
						for _, inHidden := range bits {
							for _, exclude := range bits {
								for _, ancBlock := range bits {
									item := ItemFlags{Published: published, Hidden: hidden, Approved: approved}
									cat := CategoryFlags{
										ID: 2, ParentID: 1,
										Published: catPublished, Hidden: catHidden,
										InHidden: inHidden, ExcludeSearch: exclude,
									}
									root := CategoryFlags{ID: 1, Published: 1, Hidden: ancBlock}

									want := StateHidden
									if published == 1 && approved == 1 && hidden == 0 &&
										catPublished == 1 && catHidden == 0 && inHidden == 0 &&
										exclude == 0 && ancBlock == 0 {
										want = StateVisible
									}

									got, _ := Translate(item, []CategoryFlags{cat, root})
									if got != want {
										t.Fatalf("Translate(%+v, %+v, %+v) = %d, want %d", item, cat, root, got, want)
									}
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestAncestorChangeAltersDescendants(t *testing.T) {
	t.Parallel()

	leafs := [][]CategoryFlags{
		{visibleCategory(4, 3), visibleCategory(3, 1), visibleCategory(1, 0)},
		{visibleCategory(3, 1), visibleCategory(1, 0)},
		{visibleCategory(5, 1), visibleCategory(1, 0)},
	}

	mutations := map[string]func(c *CategoryFlags){
		"hidden":      func(c *CategoryFlags) { c.Hidden = 1 },
		"excluded":    func(c *CategoryFlags) { c.ExcludeSearch = 1 },
		"unpublished": func(c *CategoryFlags) { c.Published = 0 },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			for _, chain := range leafs {
				before, _ := Translate(visibleItem(), chain)
				if before != StateVisible {
					t.Fatalf("precondition: chain %v not visible", chain)
				}

				changed := append([]CategoryFlags(nil), chain...)
				mutate(&changed[len(changed)-1])

				after, _ := Translate(visibleItem(), changed)
				if after != StateHidden {
					t.Errorf("root %s: descendant of chain %v still visible", name, chain)
				}
			}
		})
	}
}

func TestAccessMonotonic(t *testing.T) {
	t.Parallel()

	for itemAccess := 0; itemAccess <= 6; itemAccess++ {
		for catAccess := 0; catAccess <= 6; catAccess++ {
			for rootAccess := 6; rootAccess >= 0; rootAccess-- {
				item := ItemFlags{Published: 1, Approved: 1, Access: itemAccess}
				chain := []CategoryFlags{
					{ID: 2, ParentID: 1, Published: 1, Access: catAccess},
					{ID: 1, Published: 1, Access: rootAccess},
				}
				_, access := Translate(item, chain)
				if access < itemAccess || access < catAccess {
					t.Fatalf("access %d below own levels (item %d, category %d)", access, itemAccess, catAccess)
				}
				if access != max(itemAccess, catAccess, rootAccess) {
					t.Fatalf("access %d is not the maximum of %d/%d/%d", access, itemAccess, catAccess, rootAccess)
				}
			}
		}
	}
}

func TestCategoryStateAndAccess(t *testing.T) {
	t.Parallel()

	chain := []CategoryFlags{
		{ID: 3, ParentID: 2, Published: 1, Access: 1},
		{ID: 2, ParentID: 1, Published: 1, Access: 2},
		{ID: 1, Published: 1, Access: 1},
	}

	if got := CategoryState(chain); got != StateVisible {
		t.Errorf("CategoryState = %d, want %d", got, StateVisible)
	}
	if got := CategoryAccess(chain); got != 2 {
		t.Errorf("CategoryAccess = %d, want 2", got)
	}

	chain[1].Hidden = 1
	if got := CategoryState(chain); got != StateHidden {
		t.Errorf("CategoryState with hidden parent = %d, want %d", got, StateHidden)
	}

	if got := CategoryState(nil); got != StateHidden {
		t.Errorf("CategoryState(nil) = %d, want %d", got, StateHidden)
	}
	if got := CategoryAccess(nil); got != 0 {
		t.Errorf("CategoryAccess(nil) = %d, want 0", got)
	}
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	a := Aggregate([]CategoryFlags{
		{ID: 2, Published: 1, Access: 2},
		{ID: 1, Published: 1, ExcludeSearch: 1, Access: 4},
	})

	if !a.Excluded || a.Hidden || a.Unpublished {
		t.Errorf("unexpected flags: %+v", a)
	}
	if a.Access != 4 {
		t.Errorf("Access = %d, want 4", a.Access)
	}
	if a.Depth != 2 {
		t.Errorf("Depth = %d, want 2", a.Depth)
	}
	if !a.Blocks() {
		t.Error("expected excluded ancestry to block")
	}
	if (Ancestry{}).Blocks() {
		t.Error("empty ancestry must not block")
	}
}
