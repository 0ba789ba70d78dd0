package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mesh-intelligence/tableside/pkg/types"
)

type jsonlLoader struct {
	file   string
	insert func(tx *sql.Tx, rec json.RawMessage) error
}

// jsonlLoaders maps each JSONL file to the function that inserts one of its
// records. Unknown fields are ignored so older binaries can read files
// written by newer ones. The options loader keeps the forest accepted so far,
// so each call returns fresh state.
func jsonlLoaders() []jsonlLoader {
	forest := &forestLoader{}
	return []jsonlLoader{
		{itemsJSONL, insertItemRecord},
		{optionsJSONL, forest.insert},
		{cartLinesJSONL, insertCartLineRecord},
	}
}

// loadAllJSONL reads each JSONL file from dataDir into SQLite. Loading is
// transactional: all files load or the database stays empty. Malformed
// lines and records that violate constraints are skipped. An option tree
// that would make the forest invalid, such as one reusing an option ID
// already loaded, is skipped as well.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, l := range jsonlLoaders() {
		records, err := readJSONL(filepath.Join(dataDir, l.file))
		if err != nil {
			return fmt.Errorf("reading %s: %w", l.file, err)
		}
		for _, rec := range records {
			// Skip records that fail to decode or violate constraints.
			_ = l.insert(tx, rec)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

func insertItemRecord(tx *sql.Tx, raw json.RawMessage) error {
	var rec itemJSON
	if err := json.Unmarshal(raw, &rec); err != nil {
		return err
	}
	if rec.ItemID == "" || rec.Name == "" {
		return fmt.Errorf("item record missing id or name")
	}
	_, err := tx.Exec(
		`INSERT INTO items (item_id, name, description, category, price, available, add_ons, add_on_groups, nested, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ItemID, rec.Name, rec.Description, rec.Category, rec.Price, rec.Available,
		textArg(rec.AddOns), textArg(rec.AddOnGroups), textArg(rec.Nested), rec.UpdatedAt,
	)
	return err
}

// forestLoader inserts option trees in file order and rejects any tree that
// fails ValidateForest together with the trees accepted before it.
type forestLoader struct {
	accepted []types.OptionNode
}

func (f *forestLoader) insert(tx *sql.Tx, raw json.RawMessage) error {
	var rec optionJSON
	if err := json.Unmarshal(raw, &rec); err != nil {
		return err
	}
	if len(rec.Tree) == 0 {
		return fmt.Errorf("option record %d has no tree", rec.OptionID)
	}
	var node types.OptionNode
	if err := json.Unmarshal(rec.Tree, &node); err != nil {
		return fmt.Errorf("decoding option tree %d: %w", rec.OptionID, err)
	}
	if node.ID != rec.OptionID {
		return fmt.Errorf("option record %d holds tree %d", rec.OptionID, node.ID)
	}
	candidate := append(f.accepted[:len(f.accepted):len(f.accepted)], node)
	if err := types.ValidateForest(candidate); err != nil {
		return fmt.Errorf("option tree %d: %w", rec.OptionID, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO options (option_id, name, tree) VALUES (?, ?, ?)",
		rec.OptionID, rec.Name, string(rec.Tree),
	); err != nil {
		return err
	}
	f.accepted = candidate
	return nil
}

func insertCartLineRecord(tx *sql.Tx, raw json.RawMessage) error {
	var rec cartLineJSON
	if err := json.Unmarshal(raw, &rec); err != nil {
		return err
	}
	if rec.LineID == "" || rec.ItemID == "" {
		return fmt.Errorf("cart line record missing id")
	}
	_, err := tx.Exec(
		`INSERT INTO cart_lines (line_id, item_id, name, quantity, special_instructions, dining_option,
		 add_on_ids, add_on_group_ids, nested_selections, unit_price, dedup_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.LineID, rec.ItemID, rec.Name, rec.Quantity, rec.SpecialInstructions, rec.DiningOption,
		textArg(rec.AddOnIDs), textArg(rec.AddOnGroupIDs), textArg(rec.NestedSelections),
		rec.UnitPrice, rec.DedupKey, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}
