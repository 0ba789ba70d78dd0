package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SelectedOption is one chosen node together with the children chosen under
// it. A tree of SelectedOption values mirrors a subset of the option tree.
type SelectedOption struct {
	OptionID        int64            `json:"optionId"`
	Option          OptionNode       `json:"option"`
	ChildSelections []SelectedOption `json:"childSelections,omitempty"`
}

// NewSelectedOption starts a selection for node with no children chosen.
// The node is copied so later catalog edits do not reach the selection.
func NewSelectedOption(node OptionNode) SelectedOption {
	return SelectedOption{
		OptionID: node.ID,
		Option:   node.Clone(),
	}
}

// IsComplete reports whether the selection satisfies its node's child
// bounds and every child selection is itself complete. A node that does not
// require children is complete as long as its optional children do not
// exceed the maximum and are complete themselves.
func (s SelectedOption) IsComplete() bool {
	return s.incomplete(nil) == nil
}

// incomplete returns the first unmet constraint below and including s, or nil.
func (s SelectedOption) incomplete(path []string) *IncompleteError {
	path = append(append([]string(nil), path...), s.Option.Name)
	min, max := s.Option.ChildBounds()
	got := len(s.ChildSelections)
	if s.Option.RequireChildSelection && s.Option.HasChildren() && got < min {
		return &IncompleteError{Path: path, Min: min, Max: max, Got: got}
	}
	if got > max {
		return &IncompleteError{Path: path, Min: min, Max: max, Got: got}
	}
	for _, child := range s.ChildSelections {
		if err := child.incomplete(path); err != nil {
			return err
		}
	}
	return nil
}

// Price returns the price of the chosen node plus every chosen descendant.
func (s SelectedOption) Price() float64 {
	total := s.Option.Price
	for _, child := range s.ChildSelections {
		total += child.Price()
	}
	return total
}

// Clone returns a deep copy of the selection subtree. An empty child list
// is copied as nil, matching what a JSON round trip yields.
func (s SelectedOption) Clone() SelectedOption {
	c := SelectedOption{
		OptionID: s.OptionID,
		Option:   s.Option.Clone(),
	}
	if len(s.ChildSelections) > 0 {
		c.ChildSelections = CloneSelections(s.ChildSelections)
	}
	return c
}

// Describe renders the selection as a human-readable choice path, for
// example "Beef > 300g > Medium". Sibling choices are joined with ", " and
// branches are wrapped in parentheses.
func (s SelectedOption) Describe() string {
	switch len(s.ChildSelections) {
	case 0:
		return s.Option.Name
	case 1:
		return s.Option.Name + " > " + s.ChildSelections[0].Describe()
	default:
		return s.Option.Name + " > (" + DescribeSelections(s.ChildSelections) + ")"
	}
}

// CloneSelections deep-copies a selection sequence.
func CloneSelections(selections []SelectedOption) []SelectedOption {
	out := make([]SelectedOption, len(selections))
	for i := range selections {
		out[i] = selections[i].Clone()
	}
	return out
}

// DescribeSelections renders every root selection joined by ", ".
func DescribeSelections(selections []SelectedOption) string {
	parts := make([]string, len(selections))
	for i, s := range selections {
		parts[i] = s.Describe()
	}
	return strings.Join(parts, ", ")
}

// MarshalSelections serializes a confirmed selection tree for storage next
// to an order line. The encoding round-trips through UnmarshalSelections.
func MarshalSelections(selections []SelectedOption) (string, error) {
	if selections == nil {
		selections = []SelectedOption{}
	}
	b, err := json.Marshal(selections)
	if err != nil {
		return "", fmt.Errorf("marshal selections: %w", err)
	}
	return string(b), nil
}

// UnmarshalSelections parses a string produced by MarshalSelections.
// An empty string yields an empty selection.
func UnmarshalSelections(data string) ([]SelectedOption, error) {
	if strings.TrimSpace(data) == "" {
		return []SelectedOption{}, nil
	}
	var selections []SelectedOption
	if err := json.Unmarshal([]byte(data), &selections); err != nil {
		return nil, fmt.Errorf("unmarshal selections: %w", err)
	}
	if selections == nil {
		selections = []SelectedOption{}
	}
	return selections, nil
}
