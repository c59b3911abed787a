package restcache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCache stores rest-timer slots in a local SQLite file.
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the cache database at dir/restcache.db.
func OpenSQLite(dir string) (*SQLiteCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "restcache.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	// A single connection serialises writers; SQLite would otherwise return SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS rest_timers (
		key           TEXT PRIMARY KEY,
		exercise_name TEXT NOT NULL,
		set_number    INTEGER NOT NULL,
		ends_at_ms    INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache table: %w", err)
	}

	return &SQLiteCache{db: db}, nil
}

// Get returns the slot for key, or nil if empty.
func (c *SQLiteCache) Get(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	var endsAtMs int64
	err := c.db.QueryRowContext(ctx,
		`SELECT exercise_name, set_number, ends_at_ms FROM rest_timers WHERE key = ?`, key,
	).Scan(&e.ExerciseName, &e.SetNumber, &endsAtMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading rest timer %s: %w", key, err)
	}
	e.EndsAt = time.UnixMilli(endsAtMs)
	return &e, nil
}

// Set overwrites the slot for key.
func (c *SQLiteCache) Set(ctx context.Context, key string, e Entry) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO rest_timers (key, exercise_name, set_number, ends_at_ms) VALUES (?, ?, ?, ?)`,
		key, e.ExerciseName, e.SetNumber, e.EndsAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("writing rest timer %s: %w", key, err)
	}
	return nil
}

// Clear empties the slot for key.
func (c *SQLiteCache) Clear(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM rest_timers WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clearing rest timer %s: %w", key, err)
	}
	return nil
}

// Close closes the cache database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
