package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Dining options carried on each cart line.
const (
	DiningDineIn   = "dine_in"
	DiningTakeaway = "takeaway"
)

var validDiningOptions = map[string]bool{
	DiningDineIn:   true,
	DiningTakeaway: true,
}

// CartLine is one configured item in the cart. Lines with equal DedupKey
// are merged by incrementing Quantity.
type CartLine struct {
	LineID              string           `json:"line_id"`
	ItemID              string           `json:"item_id"`
	Name                string           `json:"name"`
	Quantity            int              `json:"quantity"`
	SpecialInstructions string           `json:"special_instructions,omitempty"`
	DiningOption        string           `json:"dining_option"`
	AddOnIDs            []string         `json:"add_on_ids,omitempty"`
	AddOnGroupIDs       []string         `json:"add_on_group_ids,omitempty"`
	NestedSelections    []SelectedOption `json:"nested_selections,omitempty"`
	UnitPrice           float64          `json:"unit_price"`
	DedupKey            string           `json:"dedup_key"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// LineTotal returns UnitPrice times Quantity.
func (l *CartLine) LineTotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Describe renders the nested choice path of the line, or "" when the line
// has no nested selections.
func (l *CartLine) Describe() string {
	return DescribeSelections(l.NestedSelections)
}

// ComputeLinePrice returns the unit price of a configured item: the item's
// base price plus every selected option at every depth, every add-on and
// every add-on group.
func ComputeLinePrice(item *MenuItem, selections []SelectedOption, addOns []AddOn, groups []AddOnGroup) float64 {
	total := item.Price + TotalPrice(selections)
	for _, a := range addOns {
		total += a.Price
	}
	for _, g := range groups {
		total += g.Price
	}
	return total
}

// ComputeDedupKey builds a canonical key for a cart-add request. Add-on
// lists are sorted and the selection tree is serialized with siblings
// ordered by option ID, so the key does not depend on the order in which
// the customer made choices. Any difference in chosen options yields a
// different key.
func ComputeDedupKey(itemID, instructions, dining string, addOnIDs, addOnGroupIDs []string, selections []SelectedOption) string {
	var b strings.Builder
	b.WriteString(strconv.Quote(itemID))
	b.WriteByte('|')
	b.WriteString(strconv.Quote(strings.TrimSpace(instructions)))
	b.WriteByte('|')
	b.WriteString(strconv.Quote(dining))
	b.WriteByte('|')
	writeSortedIDs(&b, addOnIDs)
	b.WriteByte('|')
	writeSortedIDs(&b, addOnGroupIDs)
	b.WriteByte('|')
	writeCanonicalSelections(&b, selections)
	return b.String()
}

func writeSortedIDs(b *strings.Builder, ids []string) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	b.WriteByte('[')
	for i, id := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(id))
	}
	b.WriteByte(']')
}

// writeCanonicalSelections writes selections as id[children] groups with
// siblings sorted by option ID, e.g. [1[10[100]],2].
func writeCanonicalSelections(b *strings.Builder, selections []SelectedOption) {
	sorted := make([]SelectedOption, len(selections))
	copy(sorted, selections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OptionID < sorted[j].OptionID
	})
	b.WriteByte('[')
	for i, s := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(s.OptionID, 10))
		if len(s.ChildSelections) > 0 {
			writeCanonicalSelections(b, s.ChildSelections)
		}
	}
	b.WriteByte(']')
}

// NewCartLine builds a cart line from a confirmed selection. Add-on IDs are
// resolved against the item; the unit price and dedup key are computed here.
func NewCartLine(item *MenuItem, selections []SelectedOption, addOnIDs, addOnGroupIDs []string, instructions, dining string, quantity int) (*CartLine, error) {
	if item == nil {
		return nil, ErrInvalidData
	}
	if !item.Available {
		return nil, fmt.Errorf("%w: %s", ErrItemUnavailable, item.ItemID)
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if dining == "" {
		dining = DiningDineIn
	}
	if !validDiningOptions[dining] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDiningOption, dining)
	}
	addOns, err := item.FindAddOns(addOnIDs)
	if err != nil {
		return nil, err
	}
	groups, err := item.FindAddOnGroups(addOnGroupIDs)
	if err != nil {
		return nil, err
	}
	if selections == nil {
		selections = []SelectedOption{}
	}
	now := time.Now().UTC()
	return &CartLine{
		ItemID:              item.ItemID,
		Name:                item.Name,
		Quantity:            quantity,
		SpecialInstructions: strings.TrimSpace(instructions),
		DiningOption:        dining,
		AddOnIDs:            append([]string(nil), addOnIDs...),
		AddOnGroupIDs:       append([]string(nil), addOnGroupIDs...),
		NestedSelections:    CloneSelections(selections),
		UnitPrice:           ComputeLinePrice(item, selections, addOns, groups),
		DedupKey:            ComputeDedupKey(item.ItemID, instructions, dining, addOnIDs, addOnGroupIDs, selections),
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// Cart is an in-memory list of cart lines keyed by dedup key.
type Cart struct {
	Lines []*CartLine
}

// Add merges line into the cart. A line whose DedupKey matches an existing
// line increments that line's quantity and returns it; otherwise the line
// is appended and returned.
func (c *Cart) Add(line *CartLine) *CartLine {
	for _, existing := range c.Lines {
		if existing.DedupKey == line.DedupKey {
			existing.Quantity += line.Quantity
			existing.UpdatedAt = time.Now().UTC()
			return existing
		}
	}
	c.Lines = append(c.Lines, line)
	return line
}

// Remove deletes the line with the given ID.
func (c *Cart) Remove(lineID string) error {
	for i, l := range c.Lines {
		if l.LineID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Total returns the sum of every line total.
func (c *Cart) Total() float64 {
	var total float64
	for _, l := range c.Lines {
		total += l.LineTotal()
	}
	return total
}

// Count returns the number of units across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}
