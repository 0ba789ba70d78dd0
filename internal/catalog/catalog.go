// Package catalog loads a static menu catalog file and moves it in and out
// of a types.Store. A catalog holds a shared option forest and the menu
// items that reference it.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/tableside/pkg/types"
)

// File is the on-disk catalog layout.
//
//	options:
//	  - id: 1
//	    name: Beef
//	    requireChildSelection: true
//	    childOptions: [...]
//	items:
//	  - id: steak-plate
//	    name: Steak Plate
//	    nested: {enabled: true, rootOptionIds: [1]}
type File struct {
	Options []types.OptionNode `json:"options" yaml:"options"`
	Items   []types.MenuItem   `json:"items" yaml:"items"`
}

// Load reads a catalog file. Files ending in .json are decoded as JSON
// (using the storage field names); anything else is decoded as YAML.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return Parse(data, format)
}

// Parse decodes catalog data in the given format ("yaml" or "json") and
// validates it.
func Parse(data []byte, format string) (*File, error) {
	var f File
	switch format {
	case "json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decoding catalog JSON: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decoding catalog YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the shared forest and every item. Item IDs must be
// present and unique.
func (f *File) Validate() error {
	if err := types.ValidateForest(f.Options); err != nil {
		return fmt.Errorf("catalog options: %w", err)
	}
	seen := make(map[string]bool, len(f.Items))
	for i := range f.Items {
		item := &f.Items[i]
		if item.ItemID == "" {
			return fmt.Errorf("%w: item %d (%q) has no id", types.ErrInvalidID, i, item.Name)
		}
		if seen[item.ItemID] {
			return fmt.Errorf("%w: item %s listed twice", types.ErrInvalidID, item.ItemID)
		}
		seen[item.ItemID] = true
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Unresolved returns, per item, the root option IDs that do not name a
// root or descendant in the shared forest. Sessions skip such IDs.
func (f *File) Unresolved() map[string][]int64 {
	out := make(map[string][]int64)
	for _, item := range f.Items {
		for _, id := range item.Nested.RootOptionIDs {
			if _, ok := types.FindNodeByID(id, f.Options); !ok {
				out[item.ItemID] = append(out[item.ItemID], id)
			}
		}
	}
	return out
}

// Summary counts what Import wrote.
type Summary struct {
	Options int
	Items   int
}

// Import writes the catalog's option trees and items into store. Option
// trees go first so the forest-wide ID check sees the whole catalog.
func Import(store types.Store, f *File) (Summary, error) {
	var sum Summary
	options, err := store.GetTable(types.TableOptions)
	if err != nil {
		return sum, err
	}
	items, err := store.GetTable(types.TableItems)
	if err != nil {
		return sum, err
	}

	for i := range f.Options {
		if _, err := options.Set("", &f.Options[i]); err != nil {
			return sum, fmt.Errorf("importing option %d: %w", f.Options[i].ID, err)
		}
		sum.Options++
	}
	for i := range f.Items {
		if _, err := items.Set(f.Items[i].ItemID, &f.Items[i]); err != nil {
			return sum, fmt.Errorf("importing item %s: %w", f.Items[i].ItemID, err)
		}
		sum.Items++
	}
	return sum, nil
}

// Forest returns every stored root option tree ordered by ID.
func Forest(store types.Store) ([]types.OptionNode, error) {
	options, err := store.GetTable(types.TableOptions)
	if err != nil {
		return nil, err
	}
	rows, err := options.Fetch(nil)
	if err != nil {
		return nil, err
	}
	forest := make([]types.OptionNode, 0, len(rows))
	for _, row := range rows {
		node, ok := row.(*types.OptionNode)
		if !ok {
			return nil, types.ErrInvalidData
		}
		forest = append(forest, *node)
	}
	return forest, nil
}

// Item loads a single menu item.
func Item(store types.Store, id string) (*types.MenuItem, error) {
	items, err := store.GetTable(types.TableItems)
	if err != nil {
		return nil, err
	}
	row, err := items.Get(id)
	if err != nil {
		return nil, err
	}
	item, ok := row.(*types.MenuItem)
	if !ok {
		return nil, types.ErrInvalidData
	}
	return item, nil
}

// Items lists menu items matching filter (see the items table for keys).
func Items(store types.Store, filter map[string]any) ([]*types.MenuItem, error) {
	items, err := store.GetTable(types.TableItems)
	if err != nil {
		return nil, err
	}
	rows, err := items.Fetch(filter)
	if err != nil {
		return nil, err
	}
	out := make([]*types.MenuItem, 0, len(rows))
	for _, row := range rows {
		item, ok := row.(*types.MenuItem)
		if !ok {
			return nil, types.ErrInvalidData
		}
		out = append(out, item)
	}
	return out, nil
}

// OpenSession loads an item and its option forest and opens a selection
// session on it.
func OpenSession(store types.Store, itemID string) (*types.MenuItem, *types.Session, error) {
	item, err := Item(store, itemID)
	if err != nil {
		return nil, nil, err
	}
	forest, err := Forest(store)
	if err != nil {
		return nil, nil, err
	}
	session, err := types.NewSession(item, forest)
	if err != nil {
		return nil, nil, err
	}
	return item, session, nil
}

// ParseOptionID parses a decimal option ID as typed by a user.
func ParseOptionID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: option %q", types.ErrInvalidID, s)
	}
	return id, nil
}
