package types

import "fmt"

// FindNodeByID searches the forest depth-first and returns the first node
// whose ID matches. The returned pointer aliases the forest.
func FindNodeByID(id int64, forest []OptionNode) (*OptionNode, bool) {
	for i := range forest {
		if forest[i].ID == id {
			return &forest[i], true
		}
		if n, ok := FindNodeByID(id, forest[i].ChildOptions); ok {
			return n, true
		}
	}
	return nil, false
}

// ResolveOptionIDs maps stored root option IDs to their nodes. IDs that do
// not exist in the forest are dropped; a missing option is a catalog data
// fault and the caller decides how to surface it.
func ResolveOptionIDs(ids []int64, forest []OptionNode) []OptionNode {
	out := make([]OptionNode, 0, len(ids))
	for _, id := range ids {
		if n, ok := FindNodeByID(id, forest); ok {
			out = append(out, *n)
		}
	}
	return out
}

// TotalPrice sums the price of every selected node at every depth. The sum
// of an empty selection is 0.
func TotalPrice(selections []SelectedOption) float64 {
	var total float64
	for _, s := range selections {
		total += s.Price()
	}
	return total
}

// ValidateForest checks the invariants a catalog must hold before sessions
// are opened on it: option IDs are unique across the whole forest, prices are
// non-negative, and child bounds are satisfiable. It returns the first
// violation found, wrapped with the offending option ID.
func ValidateForest(forest []OptionNode) error {
	seen := make(map[int64]string)
	return validateNodes(forest, seen)
}

func validateNodes(nodes []OptionNode, seen map[int64]string) error {
	for i := range nodes {
		n := &nodes[i]
		if prev, dup := seen[n.ID]; dup {
			return fmt.Errorf("%w: option %d (%q and %q)", ErrDuplicateOptionID, n.ID, prev, n.Name)
		}
		seen[n.ID] = n.Name
		if n.Price < 0 {
			return fmt.Errorf("%w: option %d", ErrNegativePrice, n.ID)
		}
		if n.MinChildSelections != nil && *n.MinChildSelections < 0 {
			return fmt.Errorf("%w: option %d has negative minimum", ErrInvalidBounds, n.ID)
		}
		min, max := n.ChildBounds()
		if min > max {
			return fmt.Errorf("%w: option %d min %d exceeds max %d", ErrInvalidBounds, n.ID, min, max)
		}
		if n.HasChildren() && max < 1 {
			return fmt.Errorf("%w: option %d has children but max %d", ErrInvalidBounds, n.ID, max)
		}
		if n.RequireChildSelection && n.HasChildren() && min > len(n.ChildOptions) {
			return fmt.Errorf("%w: option %d requires %d of %d children", ErrInvalidBounds, n.ID, min, len(n.ChildOptions))
		}
		if err := validateNodes(n.ChildOptions, seen); err != nil {
			return err
		}
	}
	return nil
}
