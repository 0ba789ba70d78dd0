// Package sqlite exposes the SQLite store factory while keeping the
// implementation internal.
package sqlite

import (
	"github.com/mesh-intelligence/tableside/internal/sqlite"
	"github.com/mesh-intelligence/tableside/pkg/types"
)

// NewBackend returns an unattached SQLite store.
//
//	store := sqlite.NewBackend()
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".tableside-db",
//	})
//	defer store.Detach()
func NewBackend() types.Store {
	return sqlite.NewBackend()
}

// Open builds a store and attaches it in one step.
func Open(cfg types.Config) (types.Store, error) {
	store := sqlite.NewBackend()
	if err := store.Attach(cfg); err != nil {
		return nil, err
	}
	return store, nil
}
