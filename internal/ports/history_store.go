package ports

import (
	"github.com/mikey/phishing-detector/internal/core"
)

// HistoryStore is a scan history repository that owns background work
type HistoryStore interface {
	core.HistoryRepository

	// Stop stops the background cleanup task and releases the store
	Stop()
}
