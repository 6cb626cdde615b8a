package tracking

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// NewDatabase opens (creating if needed) the trigger diagnostics database at
// the given path and applies the schema. ":memory:" is accepted for tests.
func NewDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA user_version = 1",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

// ensureSchema creates the database schema if it doesn't exist
func ensureSchema(db *sql.DB) error {
	schema := `
-- Consumed and dropped trigger events
CREATE TABLE IF NOT EXISTS trigger_events (
    id          INTEGER PRIMARY KEY,
    timestamp   INTEGER NOT NULL,
    step        INTEGER NOT NULL,
    media_index INTEGER NOT NULL,
    duration    REAL    NOT NULL,
    play_style  TEXT    NOT NULL,
    stolen      INTEGER NOT NULL CHECK (stolen IN (0,1)),
    dropped     INTEGER NOT NULL CHECK (dropped IN (0,1)),
    drop_reason TEXT
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_triggers_timestamp ON trigger_events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_triggers_media ON trigger_events(media_index);
CREATE INDEX IF NOT EXISTS idx_triggers_dropped ON trigger_events(dropped) WHERE dropped = 1;
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
