package store

// Schema DDL for the five relations. Written once in portable SQL: TEXT
// ids and RFC 3339 timestamps work identically under modernc sqlite and
// lib/pq. Statements are idempotent so Open can run against an existing
// database.
const (
	createCollections = `CREATE TABLE IF NOT EXISTS collections (
    collection_id TEXT PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    parent_path TEXT NOT NULL,
    kind TEXT NOT NULL,
    props TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createItems = `CREATE TABLE IF NOT EXISTS items (
    item_id TEXT PRIMARY KEY,
    collection_id TEXT NOT NULL,
    name TEXT NOT NULL,
    content TEXT NOT NULL,
    etag TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (collection_id, name),
    FOREIGN KEY (collection_id) REFERENCES collections(collection_id)
);`

	// item_history is append-only. Rows survive the deletion of their
	// collection; pruning is left to an external retention job.
	createItemHistory = `CREATE TABLE IF NOT EXISTS item_history (
    history_id TEXT PRIMARY KEY,
    collection_id TEXT NOT NULL,
    item_name TEXT NOT NULL,
    change TEXT NOT NULL,
    revision BIGINT NOT NULL,
    recorded_at TEXT NOT NULL,
    UNIQUE (collection_id, revision)
);`

	// collection_state caches the current revision so sync tokens never
	// require a history scan. The row doubles as the serialization point
	// for revision allocation: writers take its row lock before numbering.
	createCollectionState = `CREATE TABLE IF NOT EXISTS collection_state (
    collection_id TEXT PRIMARY KEY,
    current_revision BIGINT NOT NULL
);`

	createDerivedLinks = `CREATE TABLE IF NOT EXISTS derived_links (
    link_id TEXT PRIMARY KEY,
    derived_id TEXT NOT NULL UNIQUE,
    source_id TEXT NOT NULL,
    policy TEXT NOT NULL,
    UNIQUE (source_id, policy)
);`
)

// Index DDL for common queries.
const (
	idxCollectionsParent = `CREATE INDEX IF NOT EXISTS idx_collections_parent ON collections(parent_path);`
	idxItemsCollection   = `CREATE INDEX IF NOT EXISTS idx_items_collection ON items(collection_id);`
	idxHistoryCollection = `CREATE INDEX IF NOT EXISTS idx_history_collection_rev ON item_history(collection_id, revision);`
	idxHistoryItem       = `CREATE INDEX IF NOT EXISTS idx_history_item ON item_history(collection_id, item_name);`
	idxLinksSource       = `CREATE INDEX IF NOT EXISTS idx_derived_links_source ON derived_links(source_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createCollections,
	createItems,
	createItemHistory,
	createCollectionState,
	createDerivedLinks,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxCollectionsParent,
	idxItemsCollection,
	idxHistoryCollection,
	idxHistoryItem,
	idxLinksSource,
}
