package catalog

// SchemaVersion is stored in PRAGMA user_version. Bump it whenever the bags
// projection read by the query engine changes shape.
const SchemaVersion = 1

// BagsTableSQL holds one row per cached bag version.
const BagsTableSQL = `
CREATE TABLE IF NOT EXISTS bags (
    id                  TEXT PRIMARY KEY,
    space               TEXT NOT NULL,
    external_identifier TEXT NOT NULL,
    version             INTEGER NOT NULL,
    created_date        TEXT NOT NULL,
    file_count          INTEGER NOT NULL,
    total_file_size     INTEGER NOT NULL
)`

// FileExtensionsTableSQL holds the per-bag extension tally. Rows are written
// before their bag row, so foreign keys are not enforced.
const FileExtensionsTableSQL = `
CREATE TABLE IF NOT EXISTS file_extensions (
    id        INTEGER PRIMARY KEY,
    bag_id    TEXT NOT NULL,
    extension TEXT NOT NULL,
    count     INTEGER NOT NULL,
    CONSTRAINT fk_bag FOREIGN KEY (bag_id) REFERENCES bags(id),
    UNIQUE (bag_id, extension)
)`

// BagsSpaceIndexSQL serves the space + identifier range scan.
const BagsSpaceIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_bags_space_identifier ON bags(space, external_identifier)`

// AllSchemaSQL returns the schema statements in creation order.
func AllSchemaSQL() []string {
	return []string{
		BagsTableSQL,
		FileExtensionsTableSQL,
		BagsSpaceIndexSQL,
	}
}
