package types

import (
	"fmt"
	"time"
)

// Menu item categories used by the kiosk menu listing.
const (
	CategoryMain    = "main"
	CategorySide    = "side"
	CategoryDrink   = "drink"
	CategoryDessert = "dessert"
)

// MenuItem is a purchasable catalog entry. Items with Nested.Enabled open a
// selection session before they can be added to the cart.
type MenuItem struct {
	ItemID      string       `json:"item_id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string       `json:"category,omitempty" yaml:"category,omitempty"`
	Price       float64      `json:"price" yaml:"price"`
	Available   bool         `json:"available" yaml:"available"`
	AddOns      []AddOn      `json:"add_ons,omitempty" yaml:"addOns,omitempty"`
	AddOnGroups []AddOnGroup `json:"add_on_groups,omitempty" yaml:"addOnGroups,omitempty"`
	Nested      NestedConfig `json:"nested" yaml:"nested"`
	UpdatedAt   time.Time    `json:"updated_at" yaml:"-"`
}

// AddOn is a flat extra priced on top of the item (extra sauce, a drink).
type AddOn struct {
	ID    string  `json:"id" yaml:"id"`
	Name  string  `json:"name" yaml:"name"`
	Price float64 `json:"price" yaml:"price"`
}

// AddOnGroup is a bundle of add-ons sold at a single price.
type AddOnGroup struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Price    float64  `json:"price" yaml:"price"`
	AddOnIDs []string `json:"add_on_ids,omitempty" yaml:"addOnIds,omitempty"`
}

// NestedConfig carries an item's nested option forest and the bounds on how
// many root options may be chosen. The root bounds are independent of any
// node's own child bounds.
type NestedConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// RootOptionIDs lists root options by ID when the catalog stores the
	// option forest separately. RootOptions wins when both are set.
	RootOptionIDs []int64      `json:"root_option_ids,omitempty" yaml:"rootOptionIds,omitempty"`
	RootOptions   []OptionNode `json:"root_options,omitempty" yaml:"rootOptions,omitempty"`

	RequireSelection bool `json:"require_selection,omitempty" yaml:"requireSelection,omitempty"`
	MinSelections    *int `json:"min_selections,omitempty" yaml:"minSelections,omitempty"`
	MaxSelections    *int `json:"max_selections,omitempty" yaml:"maxSelections,omitempty"`
}

// RootBounds returns the effective minimum and maximum number of root
// options. Unset bounds default to one mandatory root option when
// RequireSelection is true and to at most one optional root otherwise.
func (c NestedConfig) RootBounds() (min, max int) {
	if c.RequireSelection {
		min = 1
	}
	if c.MinSelections != nil {
		min = *c.MinSelections
	}
	max = 1
	if c.MaxSelections != nil {
		max = *c.MaxSelections
	} else if min > max {
		max = min
	}
	return min, max
}

// ResolveRootOptions returns the item's root option nodes. Inline
// RootOptions are returned as is; otherwise RootOptionIDs are looked up in
// forest and unresolvable IDs are skipped.
func (m *MenuItem) ResolveRootOptions(forest []OptionNode) []OptionNode {
	if len(m.Nested.RootOptions) > 0 {
		return m.Nested.RootOptions
	}
	return ResolveOptionIDs(m.Nested.RootOptionIDs, forest)
}

// Validate checks the item's own fields and its inline option forest.
func (m *MenuItem) Validate() error {
	if m.Name == "" {
		return ErrInvalidName
	}
	if m.Price < 0 {
		return fmt.Errorf("%w: item %s", ErrNegativePrice, m.ItemID)
	}
	for _, a := range m.AddOns {
		if a.Price < 0 {
			return fmt.Errorf("%w: add-on %s", ErrNegativePrice, a.ID)
		}
	}
	for _, g := range m.AddOnGroups {
		if g.Price < 0 {
			return fmt.Errorf("%w: add-on group %s", ErrNegativePrice, g.ID)
		}
	}
	if err := ValidateForest(m.Nested.RootOptions); err != nil {
		return fmt.Errorf("item %s: %w", m.ItemID, err)
	}
	min, max := m.Nested.RootBounds()
	if min < 0 || min > max {
		return fmt.Errorf("%w: item %s root min %d max %d", ErrInvalidBounds, m.ItemID, min, max)
	}
	return nil
}

// FindAddOns returns the item's add-ons whose IDs are listed, in the order
// given. Unknown IDs are reported with ErrAddOnNotFound.
func (m *MenuItem) FindAddOns(ids []string) ([]AddOn, error) {
	out := make([]AddOn, 0, len(ids))
	for _, id := range ids {
		found := false
		for _, a := range m.AddOns {
			if a.ID == id {
				out = append(out, a)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrAddOnNotFound, id)
		}
	}
	return out, nil
}

// FindAddOnGroups returns the item's add-on groups whose IDs are listed.
func (m *MenuItem) FindAddOnGroups(ids []string) ([]AddOnGroup, error) {
	out := make([]AddOnGroup, 0, len(ids))
	for _, id := range ids {
		found := false
		for _, g := range m.AddOnGroups {
			if g.ID == id {
				out = append(out, g)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrAddOnNotFound, id)
		}
	}
	return out, nil
}
