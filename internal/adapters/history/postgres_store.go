package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS scan_history (
			id UUID PRIMARY KEY,
			sender VARCHAR(320) NOT NULL,
			level VARCHAR(16) NOT NULL,
			probability DOUBLE PRECISION NOT NULL,
			raw_probability DOUBLE PRECISION NOT NULL,
			matched_words JSONB NOT NULL,
			is_trusted_partner BOOLEAN NOT NULL,
			partner_id VARCHAR(64) NOT NULL,
			scanned_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_history_sender ON scan_history(sender, scanned_at)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_history_expires_at ON scan_history(expires_at)`,
	},
}

// NewPostgresStore creates a new PostgreSQL history store
func NewPostgresStore(connStr string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(db, postgresDialect, logger, cleanupFreq)
}
