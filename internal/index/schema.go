// Package index keeps a SQLite catalog of the saved flows in a workspace:
// one row per document plus the node types each document uses.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS flows (
	path             TEXT PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	checksum         TEXT NOT NULL DEFAULT '',
	node_count       INTEGER NOT NULL DEFAULT 0,
	connection_count INTEGER NOT NULL DEFAULT 0,
	group_count      INTEGER NOT NULL DEFAULT 0,
	updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS node_types (
	flow_path TEXT NOT NULL REFERENCES flows(path) ON DELETE CASCADE,
	type_id   TEXT NOT NULL,
	uses      INTEGER NOT NULL DEFAULT 0,
	UNIQUE(flow_path, type_id)
);

CREATE INDEX IF NOT EXISTS idx_node_types_type ON node_types(type_id);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}
