// Package commands contains the sealedvoice CLI command implementations.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sealedvoice/client-go"
	"github.com/sealedvoice/client-go/internal/config"
	"github.com/sealedvoice/client-go/internal/logging"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// NewLogger builds the process logger from configuration. Logs go to stderr
// so command output on stdout stays machine readable.
func NewLogger(cfg *config.Config) *slog.Logger {
	return logging.New(os.Stderr, logging.Options{
		Level:                cfg.LogLevel,
		FingerprintUsernames: cfg.LogFingerprintUsernames,
	})
}

// NewClient creates a relay client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) (*sealedvoice.Client, error) {
	return sealedvoice.New(
		sealedvoice.WithBaseURL(cfg.RelayURL),
		sealedvoice.WithTimeout(cfg.Timeout),
		sealedvoice.WithDeliveryStrategy(sealedvoice.DeliveryStrategy(cfg.Delivery)),
		sealedvoice.WithLogger(logger),
	)
}

// LoadIdentity reads retained private key text from path.
func LoadIdentity(username, path string) (*sealedvoice.Identity, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("username is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	id, err := sealedvoice.ImportIdentity(username, string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return id, nil
}

func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("invalid format: %s (valid options: text, json)", format)
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
