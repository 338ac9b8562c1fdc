package db

import "fmt"

// migration is a single forward-only schema change. Migrations run in order
// inside a transaction and are recorded in schema_migrations; re-running is a
// no-op.
type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "iteration title column backfill",
		sql:     `UPDATE iterations SET title = 'Iteration ' || number WHERE title = ''`,
	},
}

// RunMigrations applies any pending migrations. The base schema is created by
// Initialize; migrations cover databases created by older versions.
func (db *DB) RunMigrations() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
		    version INTEGER PRIMARY KEY,
		    name TEXT NOT NULL,
		    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	// Databases opened (not initialized) may predate newer tables; the base
	// schema is idempotent, so apply it first.
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("apply base schema: %w", err)
	}

	var current int
	if err := db.conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
