package ports

import (
	"github.com/mikey/phishing-detector/internal/core"
)

// Notifier is a verdict notifier holding a broker connection
type Notifier interface {
	core.VerdictNotifier

	// Close releases the broker connection
	Close() error
}
