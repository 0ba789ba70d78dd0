package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/tableside/pkg/types"
)

// JSONL record structures. Field names match the SQLite column names so a
// record maps one-to-one onto a row; nested values are embedded as JSON
// rather than as escaped strings.

// itemJSON represents a menu item in items.jsonl.
type itemJSON struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Price       float64         `json:"price"`
	Available   bool            `json:"available"`
	AddOns      json.RawMessage `json:"add_ons,omitempty"`
	AddOnGroups json.RawMessage `json:"add_on_groups,omitempty"`
	Nested      json.RawMessage `json:"nested,omitempty"`
	UpdatedAt   string          `json:"updated_at"`
}

// optionJSON represents one root option tree in options.jsonl.
type optionJSON struct {
	OptionID int64           `json:"option_id"`
	Name     string          `json:"name"`
	Tree     json.RawMessage `json:"tree"`
}

// cartLineJSON represents a cart line in cart_lines.jsonl.
type cartLineJSON struct {
	LineID              string          `json:"line_id"`
	ItemID              string          `json:"item_id"`
	Name                string          `json:"name"`
	Quantity            int             `json:"quantity"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	DiningOption        string          `json:"dining_option"`
	AddOnIDs            json.RawMessage `json:"add_on_ids,omitempty"`
	AddOnGroupIDs       json.RawMessage `json:"add_on_group_ids,omitempty"`
	NestedSelections    json.RawMessage `json:"nested_selections,omitempty"`
	UnitPrice           float64         `json:"unit_price"`
	DedupKey            string          `json:"dedup_key"`
	CreatedAt           string          `json:"created_at"`
	UpdatedAt           string          `json:"updated_at"`
}

// jsonText marshals v for a TEXT column. Nil slices are stored as NULL.
func jsonText(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return string(b), nil
}

// textArg converts a raw JSON field of a JSONL record into a TEXT argument.
func textArg(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return string(raw)
}

// decodeText unmarshals a nullable JSON TEXT column into v.
func decodeText(s *string, v any, column string) error {
	if s == nil || *s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(*s), v); err != nil {
		return fmt.Errorf("decoding %s: %w", column, err)
	}
	return nil
}

// itemRecord builds the JSONL record for an item.
func itemRecord(item *types.MenuItem) (itemJSON, error) {
	rec := itemJSON{
		ItemID:      item.ItemID,
		Name:        item.Name,
		Description: item.Description,
		Category:    item.Category,
		Price:       item.Price,
		Available:   item.Available,
		UpdatedAt:   formatTime(item.UpdatedAt),
	}
	var err error
	if len(item.AddOns) > 0 {
		if rec.AddOns, err = json.Marshal(item.AddOns); err != nil {
			return rec, err
		}
	}
	if len(item.AddOnGroups) > 0 {
		if rec.AddOnGroups, err = json.Marshal(item.AddOnGroups); err != nil {
			return rec, err
		}
	}
	if rec.Nested, err = json.Marshal(item.Nested); err != nil {
		return rec, err
	}
	return rec, nil
}

func cartLineRecord(line *types.CartLine) (cartLineJSON, error) {
	rec := cartLineJSON{
		LineID:              line.LineID,
		ItemID:              line.ItemID,
		Name:                line.Name,
		Quantity:            line.Quantity,
		SpecialInstructions: line.SpecialInstructions,
		DiningOption:        line.DiningOption,
		UnitPrice:           line.UnitPrice,
		DedupKey:            line.DedupKey,
		CreatedAt:           formatTime(line.CreatedAt),
		UpdatedAt:           formatTime(line.UpdatedAt),
	}
	var err error
	if len(line.AddOnIDs) > 0 {
		if rec.AddOnIDs, err = json.Marshal(line.AddOnIDs); err != nil {
			return rec, err
		}
	}
	if len(line.AddOnGroupIDs) > 0 {
		if rec.AddOnGroupIDs, err = json.Marshal(line.AddOnGroupIDs); err != nil {
			return rec, err
		}
	}
	if rec.NestedSelections, err = json.Marshal(line.NestedSelections); err != nil {
		return rec, err
	}
	return rec, nil
}
