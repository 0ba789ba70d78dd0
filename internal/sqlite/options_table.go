package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/mesh-intelligence/tableside/pkg/types"
)

// Compile-time interface check: optionsTable must implement Table.
var _ types.Table = (*optionsTable)(nil)

// optionsTable stores the shared option forest that items reference through
// NestedConfig.RootOptionIDs. Each row is one root tree keyed by the root
// option ID. Writes validate the whole forest so option IDs stay unique
// across every stored tree.
type optionsTable struct {
	backend *Backend
}

func parseOptionID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", types.ErrInvalidID, id)
	}
	return n, nil
}

// Get retrieves a root option tree by its root option ID.
func (ot *optionsTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	optionID, err := parseOptionID(id)
	if err != nil {
		return nil, err
	}
	ot.backend.mu.RLock()
	defer ot.backend.mu.RUnlock()
	if err := ot.backend.checkAttached(); err != nil {
		return nil, err
	}

	var tree string
	err = ot.backend.db.QueryRow("SELECT tree FROM options WHERE option_id = ?", optionID).Scan(&tree)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting option %d: %w", optionID, err)
	}
	var node types.OptionNode
	if err := json.Unmarshal([]byte(tree), &node); err != nil {
		return nil, fmt.Errorf("decoding option %d: %w", optionID, err)
	}
	return &node, nil
}

// Set creates or replaces a root option tree. When id is empty the node's
// own ID is used. Returns ErrDuplicateOptionID if any ID in the tree is
// already used by another stored tree.
func (ot *optionsTable) Set(id string, data any) (string, error) {
	node, ok := data.(*types.OptionNode)
	if !ok || node == nil {
		return "", types.ErrInvalidData
	}
	if node.Name == "" {
		return "", types.ErrInvalidName
	}
	if id != "" {
		optionID, err := parseOptionID(id)
		if err != nil {
			return "", err
		}
		if optionID != node.ID {
			return "", fmt.Errorf("%w: %d does not match option %d", types.ErrInvalidID, optionID, node.ID)
		}
	}

	ot.backend.mu.Lock()
	defer ot.backend.mu.Unlock()
	if err := ot.backend.checkAttached(); err != nil {
		return "", err
	}

	others, err := ot.queryTrees("SELECT tree FROM options WHERE option_id != ? ORDER BY option_id", node.ID)
	if err != nil {
		return "", err
	}
	if err := types.ValidateForest(append(others, *node)); err != nil {
		return "", err
	}

	tree, err := json.Marshal(node)
	if err != nil {
		return "", fmt.Errorf("encoding option tree: %w", err)
	}
	_, err = ot.backend.db.Exec(
		`INSERT INTO options (option_id, name, tree) VALUES (?, ?, ?)
		 ON CONFLICT(option_id) DO UPDATE SET name = excluded.name, tree = excluded.tree`,
		node.ID, node.Name, string(tree),
	)
	if err != nil {
		return "", fmt.Errorf("persisting option tree: %w", err)
	}

	if err := ot.persistJSONL(); err != nil {
		return "", fmt.Errorf("persisting %s: %w", optionsJSONL, err)
	}
	return strconv.FormatInt(node.ID, 10), nil
}

// Delete removes a root option tree. Items still listing its ID resolve
// without it.
func (ot *optionsTable) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	optionID, err := parseOptionID(id)
	if err != nil {
		return err
	}
	ot.backend.mu.Lock()
	defer ot.backend.mu.Unlock()
	if err := ot.backend.checkAttached(); err != nil {
		return err
	}

	res, err := ot.backend.db.Exec("DELETE FROM options WHERE option_id = ?", optionID)
	if err != nil {
		return fmt.Errorf("deleting option tree: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	if err := ot.persistJSONL(); err != nil {
		return fmt.Errorf("persisting %s: %w", optionsJSONL, err)
	}
	return nil
}

// Fetch returns every root tree ordered by option ID. The only supported
// filter key is "ids" ([]int64).
func (ot *optionsTable) Fetch(filter map[string]any) ([]any, error) {
	var want map[int64]bool
	for key, v := range filter {
		if key != "ids" {
			return nil, fmt.Errorf("%w: unknown key %q", types.ErrInvalidFilter, key)
		}
		ids, ok := v.([]int64)
		if !ok {
			return nil, types.ErrInvalidFilter
		}
		want = make(map[int64]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
	}

	ot.backend.mu.RLock()
	defer ot.backend.mu.RUnlock()
	if err := ot.backend.checkAttached(); err != nil {
		return nil, err
	}

	trees, err := ot.queryTrees("SELECT tree FROM options ORDER BY option_id")
	if err != nil {
		return nil, err
	}
	results := []any{}
	for i := range trees {
		if want != nil && !want[trees[i].ID] {
			continue
		}
		results = append(results, &trees[i])
	}
	return results, nil
}

func (ot *optionsTable) queryTrees(query string, args ...any) ([]types.OptionNode, error) {
	rows, err := ot.backend.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching option trees: %w", err)
	}
	defer rows.Close()

	var trees []types.OptionNode
	for rows.Next() {
		var tree string
		if err := rows.Scan(&tree); err != nil {
			return nil, fmt.Errorf("scanning option tree: %w", err)
		}
		var node types.OptionNode
		if err := json.Unmarshal([]byte(tree), &node); err != nil {
			return nil, fmt.Errorf("decoding option tree: %w", err)
		}
		trees = append(trees, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating option trees: %w", err)
	}
	return trees, nil
}

// persistJSONL rewrites options.jsonl from the table. The caller holds
// backend.mu.
func (ot *optionsTable) persistJSONL() error {
	trees, err := ot.queryTrees("SELECT tree FROM options ORDER BY option_id")
	if err != nil {
		return err
	}
	recs := make([]optionJSON, 0, len(trees))
	for _, node := range trees {
		tree, err := json.Marshal(node)
		if err != nil {
			return err
		}
		recs = append(recs, optionJSON{OptionID: node.ID, Name: node.Name, Tree: tree})
	}
	records, err := marshalRecords(recs)
	if err != nil {
		return err
	}
	return writeJSONL(filepath.Join(ot.backend.config.DataDir, optionsJSONL), records)
}
