package types

// Standard table names for Store.GetTable.
const (
	TableItems     = "items"
	TableOptions   = "options"
	TableCartLines = "cart_lines"
)

// StandardTableNames lists all standard table names for enumeration.
var StandardTableNames = []string{
	TableItems,
	TableOptions,
	TableCartLines,
}
