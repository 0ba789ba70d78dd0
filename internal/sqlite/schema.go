package sqlite

// Schema DDL for all tables. Nested values (option trees, add-on lists,
// selection trees) are stored as JSON text.
const (
	createItems = `CREATE TABLE items (
    item_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    category TEXT,
    price REAL NOT NULL,
    available INTEGER NOT NULL,
    add_ons TEXT,
    add_on_groups TEXT,
    nested TEXT,
    updated_at TEXT NOT NULL
);`

	createOptions = `CREATE TABLE options (
    option_id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    tree TEXT NOT NULL
);`

	createCartLines = `CREATE TABLE cart_lines (
    line_id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL,
    name TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    special_instructions TEXT,
    dining_option TEXT NOT NULL,
    add_on_ids TEXT,
    add_on_group_ids TEXT,
    nested_selections TEXT,
    unit_price REAL NOT NULL,
    dedup_key TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`
)

// Index DDL for common queries.
const (
	idxItemsCategory      = `CREATE INDEX idx_items_category ON items(category);`
	idxCartLinesDedupKey  = `CREATE UNIQUE INDEX idx_cart_lines_dedup_key ON cart_lines(dedup_key);`
	idxCartLinesItem      = `CREATE INDEX idx_cart_lines_item ON cart_lines(item_id);`
	idxCartLinesCreatedAt = `CREATE INDEX idx_cart_lines_created_at ON cart_lines(created_at);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createItems,
	createOptions,
	createCartLines,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxItemsCategory,
	idxCartLinesDedupKey,
	idxCartLinesItem,
	idxCartLinesCreatedAt,
}
