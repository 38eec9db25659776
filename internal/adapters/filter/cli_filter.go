package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
)

// CliFilter implements a command-line interface for phishing detection
type CliFilter struct {
	service *core.ThreatScoringService
	logger  *zap.Logger
	verbose bool
	out     io.Writer
}

// NewCliFilter creates a new CLI filter writing to stdout
func NewCliFilter(service *core.ThreatScoringService, logger *zap.Logger, verbose bool) *CliFilter {
	return &CliFilter{
		service: service,
		logger:  logger,
		verbose: verbose,
		out:     os.Stdout,
	}
}

// ProcessEmail classifies an email and prints the verdict as JSON. In
// verbose mode a human readable summary is printed first.
func (f *CliFilter) ProcessEmail(ctx context.Context, payload core.EmailPayload) (*core.ThreatVerdict, error) {
	f.logger.Debug("Processing email", zap.String("sender", payload.Sender))

	if f.verbose {
		fmt.Fprintf(f.out, "=== Email Summary ===\n")
		fmt.Fprintf(f.out, "From: %s\n", payload.Sender)
		fmt.Fprintf(f.out, "Body length: %d bytes\n", len(payload.Body))

		preview := []rune(payload.Body)
		if len(preview) > 500 {
			preview = append(preview[:500], []rune("...")...)
		}
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n\n", string(preview))
	}

	start := time.Now()
	verdict, err := f.service.Classify(ctx, payload)
	if err != nil {
		f.logger.Error("Failed to classify email", zap.Error(err))
		return nil, err
	}

	if f.verbose {
		fmt.Fprintf(f.out, "=== Results ===\n")
		fmt.Fprintf(f.out, "Level: %s\n", verdict.Level)
		fmt.Fprintf(f.out, "Probability: %.4f (raw %.4f)\n", verdict.Probability, verdict.RawProbability)
		fmt.Fprintf(f.out, "Trusted partner: %t\n", verdict.IsTrustedPartner)
		fmt.Fprintf(f.out, "Processing time: %v\n\n", time.Since(start))
	}

	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(verdict); err != nil {
		return nil, fmt.Errorf("failed to write verdict: %w", err)
	}

	return verdict, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
