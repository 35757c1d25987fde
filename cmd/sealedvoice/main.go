// Package main provides the sealedvoice CLI: identity management, sending and
// receiving encrypted clips, and the in-memory relay server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/sealedvoice/client-go/cmd/sealedvoice/commands"
	"github.com/sealedvoice/client-go/internal/config"
)

// Build-time version information (injected via ldflags during build).
var (
	version = "v0.1.0"
)

var (
	usernameFlag = &cli.StringFlag{
		Name:     "username",
		Aliases:  []string{"u"},
		Usage:    "Username of the local identity",
		Required: true,
	}
	keyFileFlag = &cli.StringFlag{
		Name:    "key-file",
		Aliases: []string{"k"},
		Usage:   "Path of the private key file",
		Value:   "identity.key",
	}
	formatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
	saveDirFlag = &cli.StringFlag{
		Name:  "save-dir",
		Usage: "Directory where verified clips are written",
	}
)

// withClient loads configuration, builds a logger and relay client, and
// loads the identity named by the username and key-file flags.
func withClient(
	cmd *cli.Command,
	fn func(logger *slog.Logger, h clientHandle) error,
) error {
	cfg := config.Load()
	logger := commands.NewLogger(cfg)

	client, err := commands.NewClient(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close client", slog.Any("error", err))
		}
	}()

	return fn(logger, clientHandle{Client: client, cmd: cmd})
}

func main() {
	cmd := &cli.Command{
		Name:    "sealedvoice",
		Usage:   "End-to-end encrypted voice clip messaging",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "Generate a new identity and write its private keys to a file",
				Flags: []cli.Flag{
					usernameFlag,
					keyFileFlag,
					formatFlag,
					&cli.StringFlag{
						Name:    "suite",
						Aliases: []string{"s"},
						Value:   "pq",
						Usage:   "Algorithm suite: 'rsa' or 'pq'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					return commands.RunKeygen(
						ctx,
						commands.NewLogger(cfg),
						cmd.String("username"),
						cmd.String("suite"),
						cmd.String("key-file"),
						cmd.String("format"),
						commands.DefaultIO(),
					)
				},
			},
			{
				Name:  "register",
				Usage: "Publish the identity's public keys to the relay",
				Flags: []cli.Flag{usernameFlag, keyFileFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withClient(cmd, func(logger *slog.Logger, h clientHandle) error {
						id, err := h.identity()
						if err != nil {
							return err
						}
						defer id.Discard()
						return commands.RunRegister(ctx, h.Client, logger, id, commands.DefaultIO())
					})
				},
			},
			{
				Name:  "users",
				Usage: "List registered users",
				Flags: []cli.Flag{formatFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withClient(cmd, func(_ *slog.Logger, h clientHandle) error {
						return commands.RunUsers(ctx, h.Client, cmd.String("format"), commands.DefaultIO())
					})
				},
			},
			{
				Name:  "send",
				Usage: "Encrypt, sign and send a clip",
				Flags: []cli.Flag{
					usernameFlag,
					keyFileFlag,
					&cli.StringFlag{
						Name:     "to",
						Aliases:  []string{"t"},
						Usage:    "Recipient username",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "clip",
						Usage: "Path of the clip to send, '-' for stdin",
						Value: "-",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withClient(cmd, func(logger *slog.Logger, h clientHandle) error {
						id, err := h.identity()
						if err != nil {
							return err
						}
						defer id.Discard()
						return commands.RunSend(ctx, h.Client, logger, id, cmd.String("to"), cmd.String("clip"), commands.DefaultIO())
					})
				},
			},
			{
				Name:  "inbox",
				Usage: "Fetch, verify and decrypt stored messages",
				Flags: []cli.Flag{usernameFlag, keyFileFlag, formatFlag, saveDirFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withClient(cmd, func(_ *slog.Logger, h clientHandle) error {
						id, err := h.identity()
						if err != nil {
							return err
						}
						defer id.Discard()
						return commands.RunInbox(ctx, h.Client, id, cmd.String("save-dir"), cmd.String("format"), commands.DefaultIO())
					})
				},
			},
			{
				Name:  "listen",
				Usage: "Print messages as they arrive",
				Flags: []cli.Flag{usernameFlag, keyFileFlag, saveDirFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
					defer cancel()
					return withClient(cmd, func(logger *slog.Logger, h clientHandle) error {
						id, err := h.identity()
						if err != nil {
							return err
						}
						defer id.Discard()
						return commands.RunListen(ctx, h.Client, logger, id, cmd.String("save-dir"), commands.DefaultIO())
					})
				},
			},
			{
				Name:  "relay",
				Usage: "Start the in-memory relay server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					return commands.RunRelay(ctx, cfg, commands.NewLogger(cfg))
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
