package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mesh-intelligence/tableside/pkg/sqlite"
	"github.com/mesh-intelligence/tableside/pkg/types"
)

// attachStore resolves the data directory and attaches a SQLite store. The
// caller must defer Detach.
func attachStore() (types.Store, error) {
	c, err := storeConfig()
	if err != nil {
		return nil, sysError(err)
	}
	store, err := sqlite.Open(c)
	if err != nil {
		return nil, sysError(fmt.Errorf("attach store: %w", err))
	}
	return store, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	fmt.Fprintln(w, string(out))
	return nil
}

// cartLines fetches every stored cart line in insertion order.
func cartLines(store types.Store) ([]*types.CartLine, types.Table, error) {
	table, err := store.GetTable(types.TableCartLines)
	if err != nil {
		return nil, nil, err
	}
	rows, err := table.Fetch(nil)
	if err != nil {
		return nil, nil, err
	}
	lines := make([]*types.CartLine, 0, len(rows))
	for _, row := range rows {
		if l, ok := row.(*types.CartLine); ok {
			lines = append(lines, l)
		}
	}
	return lines, table, nil
}
