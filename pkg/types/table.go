package types

import "errors"

// Table provides uniform CRUD operations for a single entity type.
// Get and Fetch return any; callers type-assert to the concrete entity struct.
type Table interface {
	// Get retrieves the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Get(id string) (any, error)

	// Set creates or updates an entity. When id is empty a new UUID v7 is
	// generated. Returns the actual ID used (generated or provided).
	Set(id string, data any) (string, error)

	// Delete removes the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Delete(id string) error

	// Fetch returns all entities matching the filter. An empty filter
	// returns every entity in the table.
	Fetch(filter map[string]any) ([]any, error)
}

// Table operation errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrInvalidData   = errors.New("invalid entity data")
	ErrInvalidFilter = errors.New("invalid filter value type")
)

// Catalog errors.
var (
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidKind       = errors.New("invalid option kind")
	ErrDuplicateOptionID = errors.New("duplicate option ID")
	ErrNegativePrice     = errors.New("price must not be negative")
	ErrInvalidBounds     = errors.New("invalid selection bounds")
	ErrItemUnavailable   = errors.New("menu item is unavailable")
	ErrNestedDisabled    = errors.New("menu item has no nested options")
	ErrAddOnNotFound     = errors.New("add-on not found")
)

// Selection session errors.
var (
	ErrSessionClosed       = errors.New("session is closed")
	ErrOptionNotAtLevel    = errors.New("option is not offered at the current level")
	ErrNotSelected         = errors.New("option is not selected")
	ErrNoChildOptions      = errors.New("option has no child options")
	ErrCapExceeded         = errors.New("selection limit reached")
	ErrIncompleteSelection = errors.New("incomplete selection")
)

// Cart errors.
var (
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrInvalidDiningOption = errors.New("invalid dining option")
)
