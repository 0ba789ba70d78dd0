package types

import (
	"fmt"
	"strings"
)

// OptionKind tags an option node as a plain choice or a combination of
// several underlying items. The kind is presentation metadata; validation
// treats both kinds the same.
type OptionKind int

// Option kinds.
const (
	OptionKindSingle OptionKind = iota
	OptionKindGroup
)

// String returns the catalog name of the kind ("single" or "group").
func (k OptionKind) String() string {
	switch k {
	case OptionKindSingle:
		return "single"
	case OptionKindGroup:
		return "group"
	default:
		return fmt.Sprintf("OptionKind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k OptionKind) MarshalText() ([]byte, error) {
	switch k {
	case OptionKindSingle, OptionKindGroup:
		return []byte(k.String()), nil
	default:
		return nil, ErrInvalidKind
	}
}

// UnmarshalText decodes a kind name. An empty value means single.
func (k *OptionKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "single":
		*k = OptionKindSingle
	case "group":
		*k = OptionKindGroup
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, string(text))
	}
	return nil
}

// OptionNode is one configurable choice in a nested option tree, for example
// "Beef", "300g" or "Medium". Node IDs are unique across the whole forest a
// node belongs to, not only among siblings.
type OptionNode struct {
	ID          int64      `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Image       string     `json:"image,omitempty" yaml:"image,omitempty"`
	Price       float64    `json:"price" yaml:"price"`
	Kind        OptionKind `json:"type" yaml:"type"`

	// RequireChildSelection obliges the customer to choose among
	// ChildOptions once this node is chosen.
	RequireChildSelection bool `json:"requireChildSelection,omitempty" yaml:"requireChildSelection,omitempty"`

	// MinChildSelections and MaxChildSelections bound how many children may
	// be chosen. Nil means "use the default"; see ChildBounds.
	MinChildSelections *int `json:"minChildSelections,omitempty" yaml:"minChildSelections,omitempty"`
	MaxChildSelections *int `json:"maxChildSelections,omitempty" yaml:"maxChildSelections,omitempty"`

	ChildOptions []OptionNode `json:"childOptions,omitempty" yaml:"childOptions,omitempty"`
}

// HasChildren reports whether the node carries any child options.
func (n OptionNode) HasChildren() bool {
	return len(n.ChildOptions) > 0
}

// IsLeaf reports whether the node has no child options.
func (n OptionNode) IsLeaf() bool {
	return len(n.ChildOptions) == 0
}

// ChildBounds returns the effective minimum and maximum number of children
// that may be chosen under this node.
//
// Unset bounds default to exactly one mandatory child when
// RequireChildSelection is true and to at most one optional child otherwise.
// A max left unset next to an explicit min is raised to the min.
func (n OptionNode) ChildBounds() (min, max int) {
	if n.RequireChildSelection {
		min = 1
	}
	if n.MinChildSelections != nil {
		min = *n.MinChildSelections
	}
	max = 1
	if n.MaxChildSelections != nil {
		max = *n.MaxChildSelections
	} else if min > max {
		max = min
	}
	return min, max
}

// ChildOption returns the direct child with the given ID.
func (n OptionNode) ChildOption(id int64) (*OptionNode, bool) {
	for i := range n.ChildOptions {
		if n.ChildOptions[i].ID == id {
			return &n.ChildOptions[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the node and its subtree.
func (n OptionNode) Clone() OptionNode {
	c := n
	if n.MinChildSelections != nil {
		v := *n.MinChildSelections
		c.MinChildSelections = &v
	}
	if n.MaxChildSelections != nil {
		v := *n.MaxChildSelections
		c.MaxChildSelections = &v
	}
	c.ChildOptions = nil
	if len(n.ChildOptions) > 0 {
		c.ChildOptions = make([]OptionNode, len(n.ChildOptions))
		for i := range n.ChildOptions {
			c.ChildOptions[i] = n.ChildOptions[i].Clone()
		}
	}
	return c
}

// IntPtr returns a pointer to v. Catalog literals use it for the optional
// selection bounds.
func IntPtr(v int) *int {
	return &v
}
