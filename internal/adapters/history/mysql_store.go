package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS scan_history (
			id CHAR(36) PRIMARY KEY,
			sender VARCHAR(320) NOT NULL,
			level VARCHAR(16) NOT NULL,
			probability DOUBLE NOT NULL,
			raw_probability DOUBLE NOT NULL,
			matched_words TEXT NOT NULL,
			is_trusted_partner BOOLEAN NOT NULL,
			partner_id VARCHAR(64) NOT NULL,
			scanned_at DATETIME(6) NOT NULL,
			expires_at DATETIME(6) NOT NULL,
			INDEX idx_scan_history_sender (sender, scanned_at),
			INDEX idx_scan_history_expires_at (expires_at)
		)`,
	},
}

// mysqlDSN forces the settings the store relies on: DATETIME columns are
// scanned into time.Time and interpreted as UTC
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// NewMySQLStore creates a new MySQL history store
func NewMySQLStore(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLStore, error) {
	dsn, err := mysqlDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(db, mysqlDialect, logger, cleanupFreq)
}
