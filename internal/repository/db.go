package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS water_events (
			event_id TEXT PRIMARY KEY,
			pump_id TEXT NOT NULL,
			liters REAL NOT NULL,
			payment_amount REAL NOT NULL,
			payment_currency TEXT NOT NULL,
			settlement_tx_ref TEXT,
			audit_trail TEXT NOT NULL,
			integrity_hash TEXT NOT NULL,
			ual TEXT NOT NULL,
			token_ref TEXT,
			fingerprint TEXT NOT NULL,
			chain_ref TEXT,
			anchored_at DATETIME,
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_water_events_ual ON water_events(ual)`,
		`CREATE INDEX IF NOT EXISTS idx_water_events_pump ON water_events(pump_id)`,
		`CREATE INDEX IF NOT EXISTS idx_water_events_created_at ON water_events(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}
