package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/adapters/filter"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/di"
	"github.com/mikey/phishing-detector/internal/ports"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(func(logger *zap.Logger, emailFilter ports.EmailFilter, scorer core.ProbabilityScorer) error {
		defer logger.Sync()

		if closer, ok := scorer.(interface{ Close() error }); ok {
			defer closer.Close()
		}

		return check(logger, emailFilter, flags.InputFile)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// check reads one RFC 822 message and classifies it
func check(logger *zap.Logger, emailFilter ports.EmailFilter, inputFile string) error {
	var reader io.Reader = os.Stdin
	if inputFile != "" {
		file, err := os.Open(inputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		reader = file
		logger.Debug("Reading email from file", zap.String("file", inputFile))
	} else {
		logger.Debug("Reading email from stdin")
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	msg, err := filter.ParseMessage(raw)
	if err != nil {
		return err
	}

	_, err = emailFilter.ProcessEmail(context.Background(), msg.Payload(""))
	return err
}
