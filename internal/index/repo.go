package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/apperr"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/models"
)

// FlowRow represents a row in the flows table.
type FlowRow struct {
	Path      string
	Title     string
	Checksum  string
	Stats     models.FlowStats
	UpdatedAt time.Time
}

// SearchResult represents one search hit. Match names what matched: the
// title, or the node type id that did.
type SearchResult struct {
	Path  string
	Title string
	Match string
}

// UpsertFlow inserts or replaces a flow row and its node type usage within
// a transaction.
func (db *DB) UpsertFlow(f FlowRow, usage []models.NodeUsage) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO flows (path, title, checksum, node_count, connection_count, group_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title            = excluded.title,
			checksum         = excluded.checksum,
			node_count       = excluded.node_count,
			connection_count = excluded.connection_count,
			group_count      = excluded.group_count,
			updated_at       = excluded.updated_at
	`, f.Path, f.Title, f.Checksum, f.Stats.Nodes, f.Stats.Connections, f.Stats.Groups, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert flow: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM node_types WHERE flow_path = ?`, f.Path); err != nil {
		return fmt.Errorf("index: clear node types: %w", err)
	}
	if len(usage) > 0 {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO node_types (flow_path, type_id, uses) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare node type insert: %w", err)
		}
		defer stmt.Close()
		for _, u := range usage {
			if _, err := stmt.Exec(f.Path, u.TypeID, u.Count); err != nil {
				return fmt.Errorf("index: insert node type: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteFlow removes a flow and its node type usage.
func (db *DB) DeleteFlow(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM node_types WHERE flow_path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM flows WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a flow, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM flows WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

const flowColumns = `path, title, checksum, node_count, connection_count, group_count, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanFlow(r scanner) (FlowRow, error) {
	var f FlowRow
	err := r.Scan(&f.Path, &f.Title, &f.Checksum, &f.Stats.Nodes, &f.Stats.Connections, &f.Stats.Groups, &f.UpdatedAt)
	return f, err
}

// GetFlow returns one indexed flow.
func (db *DB) GetFlow(path string) (*FlowRow, error) {
	f, err := scanFlow(db.conn.QueryRow(`SELECT `+flowColumns+` FROM flows WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get flow: %w", err)
	}
	return &f, nil
}

var sortOrders = map[string]string{
	"":        "path ASC",
	"path":    "path ASC",
	"title":   "title COLLATE NOCASE ASC, path ASC",
	"updated": "updated_at DESC, path ASC",
	"size":    "node_count DESC, path ASC",
}

// ListFlows returns a page of flows and the total count. sort is one of
// path, title, updated or size.
func (db *DB) ListFlows(limit, offset int, sort string) ([]FlowRow, int, error) {
	order, ok := sortOrders[sort]
	if !ok {
		return nil, 0, fmt.Errorf("index: list flows: unknown sort %q: %w", sort, apperr.ErrInvalid)
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM flows`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count flows: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+flowColumns+` FROM flows ORDER BY `+order+` LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list flows: %w", err)
	}
	defer rows.Close()

	var out []FlowRow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}

// Search finds flows whose title or one of whose node types contains query.
// Title hits come first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT path, title, hit FROM (
			SELECT path, title, 'title' AS hit, 0 AS tier FROM flows WHERE title LIKE ?
			UNION ALL
			SELECT f.path, f.title, min(t.type_id), 1
			FROM node_types t JOIN flows f ON f.path = t.flow_path
			WHERE t.type_id LIKE ? AND f.title NOT LIKE ?
			GROUP BY f.path
		)
		ORDER BY tier, path
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Match); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FlowsUsingType returns every flow path that contains a node of typeID.
func (db *DB) FlowsUsingType(typeID string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT flow_path FROM node_types WHERE type_id = ? ORDER BY flow_path`, typeID)
	if err != nil {
		return nil, fmt.Errorf("index: flows using type: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TypeUsage totals node type usage over the whole workspace, most used first.
func (db *DB) TypeUsage() ([]models.NodeUsage, error) {
	rows, err := db.conn.Query(`SELECT type_id, sum(uses) AS n FROM node_types GROUP BY type_id ORDER BY n DESC, type_id`)
	if err != nil {
		return nil, fmt.Errorf("index: type usage: %w", err)
	}
	defer rows.Close()

	var out []models.NodeUsage
	for rows.Next() {
		var u models.NodeUsage
		if err := rows.Scan(&u.TypeID, &u.Count); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AllPaths returns every indexed flow path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM flows`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums maps every indexed path to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM flows`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
