// Package cache mirrors the habit collection into an embedded SQLite
// database for aggregate queries.
//
// The cache is derived state. Record files stay the source of truth; after
// every reload the whole collection is written into the cache in one
// transaction, so a reader never sees half of a reload.
//
// Architecture:
//   - Database file: <vault>/.habits/cache.db
//   - WAL mode: readers (habits stats) run while the watcher writes
//   - Schema: items, entries
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/mschirtzinger/habitvault/internal/types"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the cache database at path.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := cache.Open(".habits/cache.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	pragmas := []struct {
		stmt string
		what string
	}{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
		{"PRAGMA foreign_keys=ON", "enable foreign keys"},
	}
	for _, p := range pragmas {
		if _, err := db.conn.Exec(p.stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to %s: %w", p.what, err)
		}
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the tables if they don't exist. Safe to call repeatedly.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS entries (
		item_id TEXT NOT NULL,
		date TEXT NOT NULL,  -- YYYY-MM-DD
		completed INTEGER NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (item_id, date),
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(date);
	CREATE INDEX IF NOT EXISTS idx_entries_completed ON entries(item_id, completed, date);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// ReplaceCollection swaps the cached contents for c in one transaction.
// Entries whose item is not in c are dropped.
func (db *DB) ReplaceCollection(ctx context.Context, c *types.Collection) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM items"); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}

	itemStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO items (id, name, description, color, created_at, archived)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer itemStmt.Close()

	known := make(map[string]bool, len(c.Items))
	for _, it := range c.Items {
		if _, err := itemStmt.ExecContext(ctx,
			it.ID, it.Name, it.Description, it.Color, it.CreatedAt, boolToInt(it.Archived),
		); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", it.ID, err)
		}
		known[it.ID] = true
	}

	entryStmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO entries (item_id, date, completed, note)
	VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer entryStmt.Close()

	for _, e := range c.Entries {
		if !known[e.ItemID] {
			continue
		}
		if _, err := entryStmt.ExecContext(ctx, e.ItemID, e.Date, boolToInt(e.Completed), e.Note); err != nil {
			return fmt.Errorf("failed to insert entry %s/%s: %w", e.ItemID, e.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ItemStat is an aggregate row for one item.
type ItemStat struct {
	ItemID        string
	Name          string
	Archived      bool
	Total         int    // completed entries overall
	Since         int    // completed entries on or after the since date
	LastCompleted string // most recent completed date, "" if none
}

// ItemStats aggregates completions per item, ordered by name. since is a
// YYYY-MM-DD date.
func (db *DB) ItemStats(ctx context.Context, since string) ([]ItemStat, error) {
	query := `
	SELECT
		i.id,
		i.name,
		i.archived,
		COUNT(e.date),
		COALESCE(SUM(CASE WHEN e.date >= ? THEN 1 ELSE 0 END), 0),
		COALESCE(MAX(e.date), '')
	FROM items i
	LEFT JOIN entries e ON e.item_id = i.id AND e.completed = 1
	GROUP BY i.id
	ORDER BY i.name COLLATE NOCASE, i.id
	`

	rows, err := db.conn.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query item stats: %w", err)
	}
	defer rows.Close()

	var stats []ItemStat
	for rows.Next() {
		var (
			s        ItemStat
			archived int
		)
		if err := rows.Scan(&s.ItemID, &s.Name, &archived, &s.Total, &s.Since, &s.LastCompleted); err != nil {
			return nil, fmt.Errorf("failed to scan item stats: %w", err)
		}
		s.Archived = archived != 0
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate item stats: %w", err)
	}
	return stats, nil
}

// History returns the most recent entries of one item, newest first. A
// limit of zero or less returns all of them.
func (db *DB) History(ctx context.Context, itemID string, limit int) ([]types.Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.conn.QueryContext(ctx, `
	SELECT item_id, date, completed, note
	FROM entries
	WHERE item_id = ?
	ORDER BY date DESC
	LIMIT ?`, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", itemID, err)
	}
	defer rows.Close()

	var entries []types.Entry
	for rows.Next() {
		var (
			e         types.Entry
			completed int
		)
		if err := rows.Scan(&e.ItemID, &e.Date, &completed, &e.Note); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Completed = completed != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}

// ItemCount returns the number of cached items.
func (db *DB) ItemCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
