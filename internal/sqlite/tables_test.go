package sqlite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tableside/pkg/types"
)

func steakOptions() []types.OptionNode {
	return []types.OptionNode{
		{
			ID: 1, Name: "Beef", Price: 50, RequireChildSelection: true,
			ChildOptions: []types.OptionNode{
				{ID: 11, Name: "300g", Price: 100, RequireChildSelection: true, ChildOptions: []types.OptionNode{
					{ID: 111, Name: "Medium"},
					{ID: 112, Name: "Rare"},
				}},
			},
		},
		{
			ID: 3, Name: "Salad", Kind: types.OptionKindGroup,
			MinChildSelections: types.IntPtr(0), MaxChildSelections: types.IntPtr(2),
			ChildOptions: []types.OptionNode{
				{ID: 31, Name: "Croutons", Price: 5},
				{ID: 32, Name: "Olives", Price: 7},
			},
		},
	}
}

func steakPlate() *types.MenuItem {
	return &types.MenuItem{
		ItemID:    "steak-plate",
		Name:      "Steak Plate",
		Category:  types.CategoryMain,
		Price:     20,
		Available: true,
		AddOns:    []types.AddOn{{ID: "fries", Name: "Fries", Price: 15}},
		Nested: types.NestedConfig{
			Enabled:          true,
			RootOptionIDs:    []int64{1, 3},
			RequireSelection: true,
			MaxSelections:    types.IntPtr(2),
		},
	}
}

// beefMediumSelection is Beef > 300g > Medium plus Salad > Olives.
func beefMediumSelection() []types.SelectedOption {
	forest := steakOptions()
	beef := types.NewSelectedOption(forest[0])
	w := types.NewSelectedOption(forest[0].ChildOptions[0])
	w.ChildSelections = []types.SelectedOption{types.NewSelectedOption(forest[0].ChildOptions[0].ChildOptions[0])}
	beef.ChildSelections = []types.SelectedOption{w}
	salad := types.NewSelectedOption(forest[1])
	salad.ChildSelections = []types.SelectedOption{types.NewSelectedOption(forest[1].ChildOptions[1])}
	return []types.SelectedOption{beef, salad}
}

func TestItemsTable_SetGetFetchDelete(t *testing.T) {
	dir := t.TempDir()
	b := attachBackend(t, dir)
	items := table(t, b, types.TableItems)

	id, err := items.Set("", steakPlate())
	require.NoError(t, err)
	assert.Equal(t, "steak-plate", id)

	soup := &types.MenuItem{Name: "Soup", Category: types.CategorySide, Price: 4, Available: false}
	soupID, err := items.Set("", soup)
	require.NoError(t, err)
	assert.Len(t, soupID, 36, "generated UUID")

	got, err := items.Get("steak-plate")
	require.NoError(t, err)
	item := got.(*types.MenuItem)
	assert.Equal(t, 20.0, item.Price)
	assert.Equal(t, []int64{1, 3}, item.Nested.RootOptionIDs)
	assert.Equal(t, 2, *item.Nested.MaxSelections)
	assert.False(t, item.UpdatedAt.IsZero())

	all, err := items.Fetch(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Steak Plate", all[0].(*types.MenuItem).Name, "main sorts before side")

	avail, err := items.Fetch(map[string]any{"available": true})
	require.NoError(t, err)
	assert.Len(t, avail, 1)

	byName, err := items.Fetch(map[string]any{"name": "sou"})
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	_, err = items.Fetch(map[string]any{"colour": "red"})
	assert.ErrorIs(t, err, types.ErrInvalidFilter)
	_, err = items.Fetch(map[string]any{"available": "yes"})
	assert.ErrorIs(t, err, types.ErrInvalidFilter)

	require.NoError(t, items.Delete(soupID))
	assert.ErrorIs(t, items.Delete(soupID), types.ErrNotFound)
	_, err = items.Get(soupID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	data, err := os.ReadFile(filepath.Join(dir, itemsJSONL))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
}

func TestItemsTable_SetRejectsInvalid(t *testing.T) {
	items := table(t, attachBackend(t, t.TempDir()), types.TableItems)

	_, err := items.Set("", "not an item")
	assert.ErrorIs(t, err, types.ErrInvalidData)
	_, err = items.Set("", &types.MenuItem{ItemID: "x"})
	assert.ErrorIs(t, err, types.ErrInvalidName)
	_, err = items.Set("", &types.MenuItem{ItemID: "x", Name: "X", Price: -1})
	assert.ErrorIs(t, err, types.ErrNegativePrice)

	dup := &types.MenuItem{ItemID: "x", Name: "X", Nested: types.NestedConfig{
		Enabled:     true,
		RootOptions: []types.OptionNode{{ID: 1, Name: "a"}, {ID: 1, Name: "b"}},
	}}
	_, err = items.Set("", dup)
	assert.ErrorIs(t, err, types.ErrDuplicateOptionID)
}

func TestOptionsTable_ForestUniqueness(t *testing.T) {
	options := table(t, attachBackend(t, t.TempDir()), types.TableOptions)

	for _, root := range steakOptions() {
		root := root
		_, err := options.Set("", &root)
		require.NoError(t, err)
	}

	clash := &types.OptionNode{ID: 9, Name: "Chicken", ChildOptions: []types.OptionNode{{ID: 31, Name: "Wing"}}}
	_, err := options.Set("", clash)
	assert.ErrorIs(t, err, types.ErrDuplicateOptionID)

	// Replacing a root with itself is not a clash.
	beef := steakOptions()[0]
	beef.Price = 55
	id, err := options.Set("1", &beef)
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	_, err = options.Set("2", &beef)
	assert.ErrorIs(t, err, types.ErrInvalidID)
	_, err = options.Get("beef")
	assert.ErrorIs(t, err, types.ErrInvalidID)

	got, err := options.Get("1")
	require.NoError(t, err)
	node := got.(*types.OptionNode)
	assert.Equal(t, 55.0, node.Price)
	assert.Equal(t, "Rare", node.ChildOptions[0].ChildOptions[1].Name)

	all, err := options.Fetch(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(3), all[1].(*types.OptionNode).ID)
	assert.Equal(t, types.OptionKindGroup, all[1].(*types.OptionNode).Kind)

	some, err := options.Fetch(map[string]any{"ids": []int64{3}})
	require.NoError(t, err)
	assert.Len(t, some, 1)

	require.NoError(t, options.Delete("3"))
	assert.ErrorIs(t, options.Delete("3"), types.ErrNotFound)
}

func TestCartLinesTable_MergesByDedupKey(t *testing.T) {
	b := attachBackend(t, t.TempDir())
	lines := table(t, b, types.TableCartLines)
	item := steakPlate()

	first, err := types.NewCartLine(item, beefMediumSelection(), []string{"fries"}, nil, "", "", 1)
	require.NoError(t, err)
	id, err := lines.Set("", first)
	require.NoError(t, err)
	assert.Equal(t, id, first.LineID)

	// Same choices made in a different order merge into the same line.
	sel := beefMediumSelection()
	sel[0], sel[1] = sel[1], sel[0]
	second, err := types.NewCartLine(item, sel, []string{"fries"}, nil, "", "", 2)
	require.NoError(t, err)
	id2, err := lines.Set("", second)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	assert.Equal(t, 3, second.Quantity)

	// A different doneness is a different line.
	other := beefMediumSelection()
	other[0].ChildSelections[0].ChildSelections[0] = types.NewSelectedOption(types.OptionNode{ID: 112, Name: "Rare"})
	third, err := types.NewCartLine(item, other, []string{"fries"}, nil, "", "", 1)
	require.NoError(t, err)
	id3, err := lines.Set("", third)
	require.NoError(t, err)
	assert.NotEqual(t, id, id3)

	all, err := lines.Fetch(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, id, all[0].(*types.CartLine).LineID, "insertion order")
	assert.Equal(t, 3, all[0].(*types.CartLine).Quantity)

	byKey, err := lines.Fetch(map[string]any{"dedup_key": third.DedupKey})
	require.NoError(t, err)
	assert.Len(t, byKey, 1)

	_, err = lines.Set("", &types.CartLine{ItemID: "x", Name: "X"})
	assert.ErrorIs(t, err, types.ErrInvalidQuantity)

	require.NoError(t, lines.Delete(id3))
	assert.ErrorIs(t, lines.Delete(id3), types.ErrNotFound)
}

func TestCartLines_SurviveReattach(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}
	require.NoError(t, b.Attach(cfg))

	lines := table(t, b, types.TableCartLines)
	line, err := types.NewCartLine(steakPlate(), beefMediumSelection(), nil, nil, "  no salt ", types.DiningTakeaway, 2)
	require.NoError(t, err)
	id, err := lines.Set("", line)
	require.NoError(t, err)
	_, err = table(t, b, types.TableItems).Set("", steakPlate())
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	require.NoError(t, b.Attach(cfg))
	defer b.Detach()

	got, err := table(t, b, types.TableCartLines).Get(id)
	require.NoError(t, err)
	stored := got.(*types.CartLine)
	assert.Equal(t, 2, stored.Quantity)
	assert.Equal(t, "no salt", stored.SpecialInstructions)
	assert.Equal(t, types.DiningTakeaway, stored.DiningOption)
	assert.Equal(t, line.UnitPrice, stored.UnitPrice)
	assert.Equal(t, line.DedupKey, stored.DedupKey)
	assert.Equal(t, line.Describe(), stored.Describe())
	assert.Equal(t, "Beef > 300g > Medium, Salad > Olives", stored.Describe())
	assert.True(t, line.CreatedAt.Equal(stored.CreatedAt))

	item, err := table(t, b, types.TableItems).Get("steak-plate")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, item.(*types.MenuItem).Nested.RootOptionIDs)
}
