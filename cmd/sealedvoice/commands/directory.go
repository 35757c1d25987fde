package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sealedvoice/client-go"
)

// RunRegister publishes the identity's public keys to the relay.
// Re-registering a username replaces its keys and empties its mailbox.
func RunRegister(ctx context.Context, client *sealedvoice.Client, logger *slog.Logger, id *sealedvoice.Identity, io IOTuple) error {
	if err := client.Register(ctx, id); err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	logger.Info("identity registered", slog.String("username", id.Username()))
	_, _ = fmt.Fprintf(io.Writer, "Registered %s\n", id.Username())
	return nil
}

// RunUsers lists every registered user.
func RunUsers(ctx context.Context, client *sealedvoice.Client, format string, io IOTuple) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	users, err := client.Users(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if format == "json" {
		return outputJSON(io.Writer, users)
	}
	if len(users) == 0 {
		_, _ = fmt.Fprintln(io.Writer, "No registered users")
		return nil
	}
	for _, u := range users {
		_, _ = fmt.Fprintln(io.Writer, u.Username)
	}
	return nil
}
