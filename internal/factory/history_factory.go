package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/adapters/history"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/ports"
)

// memoryHistoryLimit caps the in-memory store between cleanups
const memoryHistoryLimit = 10000

// HistoryFactory creates scan history stores based on configuration
type HistoryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewHistoryFactory creates a new history factory
func NewHistoryFactory(cfg *config.Config, logger *zap.Logger) *HistoryFactory {
	return &HistoryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateHistoryStore creates the configured store. It returns nil when the
// history is disabled.
func (f *HistoryFactory) CreateHistoryStore() (ports.HistoryStore, error) {
	historyCfg := f.cfg.GetHistory()
	if !historyCfg.Enabled {
		f.logger.Info("Scan history disabled")
		return nil, nil
	}

	var (
		store *history.SQLStore
		err   error
	)

	switch historyCfg.Type {
	case "memory":
		return history.NewMemoryStore(f.logger, historyCfg.CleanupFrequency, memoryHistoryLimit), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(historyCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		store, err = history.NewSQLiteStore(historyCfg.SQLitePath, f.logger, historyCfg.CleanupFrequency)
	case "mysql":
		store, err = history.NewMySQLStore(historyCfg.MySQLDSN, f.logger, historyCfg.CleanupFrequency)
	case "postgres":
		store, err = history.NewPostgresStore(historyCfg.PostgresDSN, f.logger, historyCfg.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported history type: %s", historyCfg.Type)
	}

	if err != nil {
		return nil, err
	}
	return store, nil
}
