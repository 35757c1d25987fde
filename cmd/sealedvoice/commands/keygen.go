package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sealedvoice/client-go"
)

// RunKeygen generates a new identity and writes its private key text to
// keyFile with 0600 permissions. The public keys are printed in text or JSON
// format. An existing keyFile is never overwritten.
func RunKeygen(
	ctx context.Context,
	logger *slog.Logger,
	username string,
	suite string,
	keyFile string,
	format string,
	io IOTuple,
) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	id, err := sealedvoice.GenerateIdentity(ctx, username, sealedvoice.WithSuite(sealedvoice.Suite(suite)))
	if err != nil {
		return fmt.Errorf("failed to generate identity: %w", err)
	}
	defer id.Discard()

	priv, err := id.ExportPrivate()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(keyFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	if _, err := f.WriteString(priv.Text()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	logger.Info("identity generated",
		slog.String("username", username),
		slog.String("suite", string(id.Suite())),
	)

	if format == "json" {
		return outputJSON(io.Writer, id.Entry())
	}
	pub := id.ExportPublic()
	_, _ = fmt.Fprintf(io.Writer, "Username: %s\n", username)
	_, _ = fmt.Fprintf(io.Writer, "Suite: %s\n", id.Suite())
	_, _ = fmt.Fprintf(io.Writer, "Encryption Public Key: %s\n", pub.Encryption)
	_, _ = fmt.Fprintf(io.Writer, "Signing Public Key: %s\n", pub.Signing)
	_, _ = fmt.Fprintf(io.Writer, "Private keys written to %s\n", keyFile)
	return nil
}
