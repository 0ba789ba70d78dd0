package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tableside/pkg/types"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(types.Config{Backend: types.BackendSQLite, DataDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Detach() })

	_, err = os.Stat(filepath.Join(dir, "items.jsonl"))
	assert.NoError(t, err)

	items, err := store.GetTable(types.TableItems)
	require.NoError(t, err)
	all, err := items.Fetch(nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	store, err := Open(types.Config{Backend: "postgres", DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
	assert.Nil(t, store)
}

func TestNewBackendIsUnattached(t *testing.T) {
	store := NewBackend()
	_, err := store.GetTable(types.TableItems)
	assert.Error(t, err)
	require.NoError(t, store.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	assert.NoError(t, store.Detach())
}
