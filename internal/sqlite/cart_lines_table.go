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

// Compile-time interface check: cartLinesTable must implement Table.
var _ types.Table = (*cartLinesTable)(nil)

// cartLinesTable implements the Table interface for cart lines. Lines are
// unique by dedup key; adding a line whose key already exists increments
// the stored quantity.
type cartLinesTable struct {
	backend *Backend
}

const selectCartLines = `SELECT line_id, item_id, name, quantity, special_instructions, dining_option,
	add_on_ids, add_on_group_ids, nested_selections, unit_price, dedup_key, created_at, updated_at
	FROM cart_lines`

// Get retrieves a cart line by ID.
func (ct *cartLinesTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	ct.backend.mu.RLock()
	defer ct.backend.mu.RUnlock()
	if err := ct.backend.checkAttached(); err != nil {
		return nil, err
	}

	line, err := scanCartLine(ct.backend.db.QueryRow(selectCartLines+" WHERE line_id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart line %s: %w", id, err)
	}
	return line, nil
}

// Set stores a cart line. With no ID (neither the argument nor
// line.LineID), a line whose dedup key is already stored is merged into it
// by adding quantities, and the existing line ID is returned; otherwise a
// new UUID v7 line is inserted. With an ID the line is created or replaced
// as given. The passed line is updated to reflect what was stored.
func (ct *cartLinesTable) Set(id string, data any) (string, error) {
	line, ok := data.(*types.CartLine)
	if !ok || line == nil {
		return "", types.ErrInvalidData
	}
	if id == "" {
		id = line.LineID
	}
	if line.ItemID == "" || line.Name == "" {
		return "", types.ErrInvalidData
	}
	if line.Quantity < 1 {
		return "", types.ErrInvalidQuantity
	}
	if line.DedupKey == "" {
		line.DedupKey = types.ComputeDedupKey(line.ItemID, line.SpecialInstructions, line.DiningOption,
			line.AddOnIDs, line.AddOnGroupIDs, line.NestedSelections)
	}

	ct.backend.mu.Lock()
	defer ct.backend.mu.Unlock()
	if err := ct.backend.checkAttached(); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if id == "" {
		existing, err := scanCartLine(ct.backend.db.QueryRow(selectCartLines+" WHERE dedup_key = ?", line.DedupKey))
		switch {
		case err == nil:
			existing.Quantity += line.Quantity
			if _, err := ct.backend.db.Exec(
				"UPDATE cart_lines SET quantity = ?, updated_at = ? WHERE line_id = ?",
				existing.Quantity, formatTime(now), existing.LineID,
			); err != nil {
				return "", fmt.Errorf("merging cart line: %w", err)
			}
			if err := ct.persistJSONL(); err != nil {
				return "", fmt.Errorf("persisting %s: %w", cartLinesJSONL, err)
			}
			line.LineID = existing.LineID
			line.Quantity = existing.Quantity
			line.CreatedAt = existing.CreatedAt
			line.UpdatedAt = now
			return existing.LineID, nil
		case !errors.Is(err, sql.ErrNoRows):
			return "", fmt.Errorf("looking up dedup key: %w", err)
		}

		newID, err := generateUUID()
		if err != nil {
			return "", err
		}
		id = newID
	}

	line.LineID = id
	if line.CreatedAt.IsZero() {
		line.CreatedAt = now
	}
	line.UpdatedAt = now

	addOns, err := jsonText(line.AddOnIDs)
	if err != nil {
		return "", fmt.Errorf("encoding add-on IDs: %w", err)
	}
	groups, err := jsonText(line.AddOnGroupIDs)
	if err != nil {
		return "", fmt.Errorf("encoding add-on group IDs: %w", err)
	}
	selections, err := types.MarshalSelections(line.NestedSelections)
	if err != nil {
		return "", fmt.Errorf("encoding nested selections: %w", err)
	}

	_, err = ct.backend.db.Exec(
		`INSERT INTO cart_lines (line_id, item_id, name, quantity, special_instructions, dining_option,
		 add_on_ids, add_on_group_ids, nested_selections, unit_price, dedup_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(line_id) DO UPDATE SET
		   item_id = excluded.item_id, name = excluded.name, quantity = excluded.quantity,
		   special_instructions = excluded.special_instructions, dining_option = excluded.dining_option,
		   add_on_ids = excluded.add_on_ids, add_on_group_ids = excluded.add_on_group_ids,
		   nested_selections = excluded.nested_selections, unit_price = excluded.unit_price,
		   dedup_key = excluded.dedup_key, updated_at = excluded.updated_at`,
		id, line.ItemID, line.Name, line.Quantity, line.SpecialInstructions, line.DiningOption,
		addOns, groups, selections, line.UnitPrice, line.DedupKey,
		formatTime(line.CreatedAt), formatTime(line.UpdatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("persisting cart line: %w", err)
	}

	if err := ct.persistJSONL(); err != nil {
		return "", fmt.Errorf("persisting %s: %w", cartLinesJSONL, err)
	}
	return id, nil
}

// Delete removes a cart line.
func (ct *cartLinesTable) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	ct.backend.mu.Lock()
	defer ct.backend.mu.Unlock()
	if err := ct.backend.checkAttached(); err != nil {
		return err
	}

	res, err := ct.backend.db.Exec("DELETE FROM cart_lines WHERE line_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting cart line: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	if err := ct.persistJSONL(); err != nil {
		return fmt.Errorf("persisting %s: %w", cartLinesJSONL, err)
	}
	return nil
}

// Fetch returns cart lines in the order they were first added. Supported
// filter keys: "item_id" (string), "dedup_key" (string).
func (ct *cartLinesTable) Fetch(filter map[string]any) ([]any, error) {
	var conditions []string
	var args []any
	for key, v := range filter {
		switch key {
		case "item_id", "dedup_key":
			s, ok := v.(string)
			if !ok {
				return nil, types.ErrInvalidFilter
			}
			conditions = append(conditions, key+" = ?")
			args = append(args, s)
		default:
			return nil, fmt.Errorf("%w: unknown key %q", types.ErrInvalidFilter, key)
		}
	}

	query := selectCartLines
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, rowid"

	ct.backend.mu.RLock()
	defer ct.backend.mu.RUnlock()
	if err := ct.backend.checkAttached(); err != nil {
		return nil, err
	}

	lines, err := ct.queryCartLines(query, args...)
	if err != nil {
		return nil, err
	}
	results := make([]any, len(lines))
	for i, l := range lines {
		results[i] = l
	}
	return results, nil
}

func (ct *cartLinesTable) queryCartLines(query string, args ...any) ([]*types.CartLine, error) {
	rows, err := ct.backend.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching cart lines: %w", err)
	}
	defer rows.Close()

	var lines []*types.CartLine
	for rows.Next() {
		l, err := scanCartLine(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cart lines: %w", err)
	}
	return lines, nil
}

// persistJSONL rewrites cart_lines.jsonl. The caller holds backend.mu.
func (ct *cartLinesTable) persistJSONL() error {
	lines, err := ct.queryCartLines(selectCartLines + " ORDER BY created_at, rowid")
	if err != nil {
		return err
	}
	recs := make([]cartLineJSON, 0, len(lines))
	for _, l := range lines {
		rec, err := cartLineRecord(l)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	records, err := marshalRecords(recs)
	if err != nil {
		return err
	}
	return writeJSONL(filepath.Join(ct.backend.config.DataDir, cartLinesJSONL), records)
}

func scanCartLine(row rowScanner) (*types.CartLine, error) {
	var (
		l                      types.CartLine
		instructions           sql.NullString
		addOns, groups, nested *string
		createdAt, updatedAt   string
	)
	if err := row.Scan(&l.LineID, &l.ItemID, &l.Name, &l.Quantity, &instructions, &l.DiningOption,
		&addOns, &groups, &nested, &l.UnitPrice, &l.DedupKey, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	l.SpecialInstructions = instructions.String
	if err := decodeText(addOns, &l.AddOnIDs, "add_on_ids"); err != nil {
		return nil, err
	}
	if err := decodeText(groups, &l.AddOnGroupIDs, "add_on_group_ids"); err != nil {
		return nil, err
	}
	var raw string
	if nested != nil {
		raw = *nested
	}
	selections, err := types.UnmarshalSelections(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding nested_selections: %w", err)
	}
	l.NestedSelections = selections
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &l, nil
}
