package types

// Option IDs of the steakhouse fixture forest.
const (
	idBeef      int64 = 1
	idBeef300   int64 = 11
	idBeef300Md int64 = 111
	idBeef300Rr int64 = 112
	idBeef500   int64 = 12
	idBeef500Md int64 = 121
	idPork      int64 = 2
	idPork200   int64 = 21
	idPork400   int64 = 22
	idSalad     int64 = 3
	idCroutons  int64 = 31
	idOlives    int64 = 32
	idFeta      int64 = 33
)

// steakForest builds the forest used across the session tests:
//
//	Beef(50) requires weight: 300g(100) requires doneness, 500g(180) requires doneness
//	Pork(30) requires weight: 200g(60), 400g(110)
//	Salad(0) optional extras, up to two: Croutons(5), Olives(7), Feta(9)
func steakForest() []OptionNode {
	doneness := func(ids ...int64) []OptionNode {
		names := []string{"Medium", "Rare"}
		out := make([]OptionNode, len(ids))
		for i, id := range ids {
			out[i] = OptionNode{ID: id, Name: names[i]}
		}
		return out
	}
	return []OptionNode{
		{
			ID: idBeef, Name: "Beef", Price: 50, RequireChildSelection: true,
			ChildOptions: []OptionNode{
				{ID: idBeef300, Name: "300g", Price: 100, RequireChildSelection: true, ChildOptions: doneness(idBeef300Md, idBeef300Rr)},
				{ID: idBeef500, Name: "500g", Price: 180, RequireChildSelection: true, ChildOptions: doneness(idBeef500Md)},
			},
		},
		{
			ID: idPork, Name: "Pork", Price: 30, RequireChildSelection: true,
			ChildOptions: []OptionNode{
				{ID: idPork200, Name: "200g", Price: 60},
				{ID: idPork400, Name: "400g", Price: 110},
			},
		},
		{
			ID: idSalad, Name: "Salad", Kind: OptionKindGroup,
			MinChildSelections: IntPtr(0), MaxChildSelections: IntPtr(2),
			ChildOptions: []OptionNode{
				{ID: idCroutons, Name: "Croutons", Price: 5},
				{ID: idOlives, Name: "Olives", Price: 7},
				{ID: idFeta, Name: "Feta", Price: 9},
			},
		},
	}
}

// steakItem wraps steakForest in a nested-enabled item with one mandatory
// root choice.
func steakItem() *MenuItem {
	return &MenuItem{
		ItemID:    "steak-plate",
		Name:      "Steak Plate",
		Category:  CategoryMain,
		Price:     20,
		Available: true,
		AddOns: []AddOn{
			{ID: "fries", Name: "Fries", Price: 15},
			{ID: "gravy", Name: "Gravy", Price: 4},
		},
		AddOnGroups: []AddOnGroup{
			{ID: "combo", Name: "Drink + Dessert", Price: 25, AddOnIDs: []string{"cola", "pudding"}},
		},
		Nested: NestedConfig{
			Enabled:          true,
			RootOptions:      steakForest(),
			RequireSelection: true,
		},
	}
}

// pizzaToppings returns five flat toppings with IDs 201..205.
func pizzaToppings() []OptionNode {
	names := []string{"Ham", "Mushroom", "Onion", "Pepper", "Olive"}
	out := make([]OptionNode, len(names))
	for i, n := range names {
		out[i] = OptionNode{ID: int64(201 + i), Name: n, Price: float64(10 + i)}
	}
	return out
}

// pizzaConfig bounds root selections to between two and four toppings.
func pizzaConfig() NestedConfig {
	return NestedConfig{
		Enabled:          true,
		RequireSelection: true,
		MinSelections:    IntPtr(2),
		MaxSelections:    IntPtr(4),
	}
}

// selectAll applies Select for each ID in order and fails on any error.
func selectAll(s *Session, ids ...int64) error {
	for _, id := range ids {
		if _, err := s.Select(id); err != nil {
			return err
		}
	}
	return nil
}

// containsOption reports whether id appears anywhere in the selection tree.
func containsOption(selections []SelectedOption, id int64) bool {
	for _, s := range selections {
		if s.OptionID == id || containsOption(s.ChildSelections, id) {
			return true
		}
	}
	return false
}
