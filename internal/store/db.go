package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store owns the product registry, the append-only price history, and the
// notification log. All three live in one SQLite database; SQLite's single
// writer serializes mutations while WAL keeps reads concurrent.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema
// exists. Pass ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tracked_products (
			id TEXT PRIMARY KEY,
			platform TEXT NOT NULL,
			external_id TEXT NOT NULL,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			target_price INTEGER,
			created_at TEXT NOT NULL,
			UNIQUE(platform, external_id)
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			product_id TEXT NOT NULL REFERENCES tracked_products(id) ON DELETE CASCADE,
			price INTEGER NOT NULL,
			original_price INTEGER,
			in_stock INTEGER NOT NULL DEFAULT 1,
			observed_at TEXT NOT NULL,
			PRIMARY KEY (product_id, observed_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_product ON price_history(product_id, observed_at)`,
		`CREATE TABLE IF NOT EXISTS notification_log (
			notification_type TEXT NOT NULL,
			reference_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			sent_at TEXT NOT NULL,
			UNIQUE(notification_type, reference_id, channel)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}
