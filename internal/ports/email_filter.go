package ports

import (
	"context"

	"github.com/mikey/phishing-detector/internal/core"
)

// EmailFilter defines the interface for the inbound surfaces that feed
// emails to the scoring service
type EmailFilter interface {
	// ProcessEmail classifies an email and returns the verdict
	ProcessEmail(ctx context.Context, payload core.EmailPayload) (*core.ThreatVerdict, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
