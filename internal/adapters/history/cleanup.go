// Package history persists classification results so recent scans can be
// listed per sender.
package history

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// defaultListLimit caps ListRecent when the caller gives no limit
const defaultListLimit = 50

// maxListLimit caps ListRecent regardless of the caller
const maxListLimit = 1000

type cleaner interface {
	Cleanup(ctx context.Context) error
}

// runCleanup removes expired records every freq until stopCh is closed
func runCleanup(c cleaner, freq time.Duration, stopCh <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up scan history", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
