package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS scan_history (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			level TEXT NOT NULL,
			probability REAL NOT NULL,
			raw_probability REAL NOT NULL,
			matched_words TEXT NOT NULL,
			is_trusted_partner BOOLEAN NOT NULL,
			partner_id TEXT NOT NULL,
			scanned_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_history_sender ON scan_history(sender, scanned_at)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_history_expires_at ON scan_history(expires_at)`,
	},
}

// NewSQLiteStore creates a new SQLite history store
func NewSQLiteStore(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite serializes writers; one connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	return newSQLStore(db, sqliteDialect, logger, cleanupFreq)
}
