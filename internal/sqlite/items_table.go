package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mesh-intelligence/tableside/pkg/types"
)

// Compile-time interface check: itemsTable must implement Table.
var _ types.Table = (*itemsTable)(nil)

// itemsTable implements the Table interface for menu items. Each write
// rewrites items.jsonl atomically.
type itemsTable struct {
	backend *Backend
}

const selectItems = `SELECT item_id, name, description, category, price, available,
	add_ons, add_on_groups, nested, updated_at FROM items`

// Get retrieves a menu item by ID.
func (it *itemsTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	it.backend.mu.RLock()
	defer it.backend.mu.RUnlock()
	if err := it.backend.checkAttached(); err != nil {
		return nil, err
	}

	item, err := scanItem(it.backend.db.QueryRow(selectItems+" WHERE item_id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting item %s: %w", id, err)
	}
	return item, nil
}

// Set creates or replaces a menu item. When id is empty the item's own
// ItemID is used, and a UUID v7 is generated if that is empty too. The
// item and its inline option forest are validated before anything is
// written.
func (it *itemsTable) Set(id string, data any) (string, error) {
	item, ok := data.(*types.MenuItem)
	if !ok || item == nil {
		return "", types.ErrInvalidData
	}
	if id == "" {
		id = item.ItemID
	}
	if id == "" {
		newID, err := generateUUID()
		if err != nil {
			return "", err
		}
		id = newID
	}
	item.ItemID = id
	if err := item.Validate(); err != nil {
		return "", err
	}

	it.backend.mu.Lock()
	defer it.backend.mu.Unlock()
	if err := it.backend.checkAttached(); err != nil {
		return "", err
	}

	item.UpdatedAt = time.Now().UTC()
	addOns, err := jsonText(item.AddOns)
	if err != nil {
		return "", fmt.Errorf("encoding add-ons: %w", err)
	}
	groups, err := jsonText(item.AddOnGroups)
	if err != nil {
		return "", fmt.Errorf("encoding add-on groups: %w", err)
	}
	nested, err := jsonText(item.Nested)
	if err != nil {
		return "", fmt.Errorf("encoding nested config: %w", err)
	}

	_, err = it.backend.db.Exec(
		`INSERT INTO items (item_id, name, description, category, price, available, add_ons, add_on_groups, nested, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(item_id) DO UPDATE SET
		   name = excluded.name, description = excluded.description, category = excluded.category,
		   price = excluded.price, available = excluded.available, add_ons = excluded.add_ons,
		   add_on_groups = excluded.add_on_groups, nested = excluded.nested, updated_at = excluded.updated_at`,
		id, item.Name, item.Description, item.Category, item.Price, item.Available,
		addOns, groups, nested, formatTime(item.UpdatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("persisting item: %w", err)
	}

	if err := it.persistJSONL(); err != nil {
		return "", fmt.Errorf("persisting %s: %w", itemsJSONL, err)
	}
	return id, nil
}

// Delete removes a menu item. Cart lines already holding the item keep
// their copy of its name, price and selections.
func (it *itemsTable) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	it.backend.mu.Lock()
	defer it.backend.mu.Unlock()
	if err := it.backend.checkAttached(); err != nil {
		return err
	}

	res, err := it.backend.db.Exec("DELETE FROM items WHERE item_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	if err := it.persistJSONL(); err != nil {
		return fmt.Errorf("persisting %s: %w", itemsJSONL, err)
	}
	return nil
}

// Fetch returns items ordered by category then name. Supported filter keys:
// "category" (string), "available" (bool), "name" (string, case-insensitive
// substring).
func (it *itemsTable) Fetch(filter map[string]any) ([]any, error) {
	var conditions []string
	var args []any

	for key, v := range filter {
		switch key {
		case "category":
			s, ok := v.(string)
			if !ok {
				return nil, types.ErrInvalidFilter
			}
			conditions = append(conditions, "category = ?")
			args = append(args, s)
		case "available":
			b, ok := v.(bool)
			if !ok {
				return nil, types.ErrInvalidFilter
			}
			conditions = append(conditions, "available = ?")
			args = append(args, b)
		case "name":
			s, ok := v.(string)
			if !ok {
				return nil, types.ErrInvalidFilter
			}
			conditions = append(conditions, "LOWER(name) LIKE ?")
			args = append(args, "%"+strings.ToLower(s)+"%")
		default:
			return nil, fmt.Errorf("%w: unknown key %q", types.ErrInvalidFilter, key)
		}
	}

	query := selectItems
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY category, name, item_id"

	it.backend.mu.RLock()
	defer it.backend.mu.RUnlock()
	if err := it.backend.checkAttached(); err != nil {
		return nil, err
	}

	items, err := it.queryItems(query, args...)
	if err != nil {
		return nil, err
	}
	results := make([]any, len(items))
	for i, item := range items {
		results[i] = item
	}
	return results, nil
}

func (it *itemsTable) queryItems(query string, args ...any) ([]*types.MenuItem, error) {
	rows, err := it.backend.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching items: %w", err)
	}
	defer rows.Close()

	var items []*types.MenuItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// persistJSONL rewrites items.jsonl from the table. The caller holds
// backend.mu.
func (it *itemsTable) persistJSONL() error {
	items, err := it.queryItems(selectItems + " ORDER BY item_id")
	if err != nil {
		return err
	}
	recs := make([]itemJSON, 0, len(items))
	for _, item := range items {
		rec, err := itemRecord(item)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	records, err := marshalRecords(recs)
	if err != nil {
		return err
	}
	return writeJSONL(filepath.Join(it.backend.config.DataDir, itemsJSONL), records)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*types.MenuItem, error) {
	var (
		item                   types.MenuItem
		description, category  sql.NullString
		addOns, groups, nested *string
		updatedAt              string
	)
	if err := row.Scan(&item.ItemID, &item.Name, &description, &category, &item.Price, &item.Available,
		&addOns, &groups, &nested, &updatedAt); err != nil {
		return nil, err
	}
	item.Description = description.String
	item.Category = category.String
	if err := decodeText(addOns, &item.AddOns, "add_ons"); err != nil {
		return nil, err
	}
	if err := decodeText(groups, &item.AddOnGroups, "add_on_groups"); err != nil {
		return nil, err
	}
	if err := decodeText(nested, &item.Nested, "nested"); err != nil {
		return nil, err
	}
	t, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	item.UpdatedAt = t
	return &item, nil
}
