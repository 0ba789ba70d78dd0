package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain builds the tableside binary once before running tests.
func TestMain(m *testing.M) {
	projectRoot, err := FindProjectRoot()
	if err != nil {
		buildErr = err
		os.Exit(1)
	}
	tmpDir, err := os.MkdirTemp("", "tableside-test-*")
	if err != nil {
		buildErr = err
		os.Exit(1)
	}
	tablesideBin = filepath.Join(tmpDir, "tableside")

	cmd := exec.Command("go", "build", "-o", tablesideBin, "./cmd/tableside")
	cmd.Dir = projectRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		buildErr = &BuildError{Err: err, Output: string(output)}
	}

	code := m.Run()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

type cartLineRecord struct {
	LineID    string  `json:"line_id"`
	ItemID    string  `json:"item_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	DedupKey  string  `json:"dedup_key"`
}

type cartOutput struct {
	Lines []cartLineRecord `json:"lines"`
	Count int              `json:"count"`
	Total float64          `json:"total"`
}

// TestOrderSurvivesRestart drives a full order through separate processes
// and checks that JSONL is the source of truth across runs.
func TestOrderSurvivesRestart(t *testing.T) {
	env := NewTestEnv(t)

	r := env.MustRun("", "init")
	assert.Contains(t, r.Stdout, env.DataDir)

	env.MustRun("", "catalog", "import", env.Fixture("steakhouse.yaml"))
	env.MustRun("1\n12\n121\nroot\n3\nopen 3\n31\n32\nconfirm\n", "order", "steak-plate", "--add-on", "gravy")
	env.MustRun("", "cart", "add", "lemonade")

	lines := ReadJSONLFile[cartLineRecord](t, filepath.Join(env.DataDir, "cart_lines.jsonl"))
	require.Len(t, lines, 2)
	// 20 + Beef 50 + 500g 180 + Salad 0 + Croutons 5 + Olives 7 + Gravy 4
	assert.Equal(t, 266.0, lines[0].UnitPrice)

	// Drop the cache; the next run rebuilds it from JSONL.
	require.NoError(t, os.Remove(filepath.Join(env.DataDir, "tableside.db")))

	cart := ParseJSON[cartOutput](t, env.MustRun("", "--json", "cart", "list").Stdout)
	require.Len(t, cart.Lines, 2)
	assert.Equal(t, 2, cart.Count)
	assert.Equal(t, 269.5, cart.Total)

	// Selecting the same choices in another order merges into the first line.
	env.MustRun("3\nopen 3\n32\n31\nroot\n1\n12\n121\nconfirm\n", "order", "steak-plate", "--add-on", "gravy")
	cart = ParseJSON[cartOutput](t, env.MustRun("", "--json", "cart", "list").Stdout)
	require.Len(t, cart.Lines, 2)
	assert.Equal(t, 2, cart.Lines[0].Quantity)
}

func TestExitCodes(t *testing.T) {
	env := NewTestEnv(t)
	env.MustRun("", "catalog", "import", env.Fixture("steakhouse.yaml"))

	r := env.Run("", "cart", "add", "no-such-item")
	assert.Equal(t, 1, r.ExitCode)
	assert.Contains(t, r.Stderr, "entity not found")

	r = env.Run("", "order")
	assert.Equal(t, 1, r.ExitCode)

	r = env.Run("", "catalog", "import", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, r.ExitCode)
}
