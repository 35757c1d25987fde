package delivery

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sealedvoice/client-go/internal/api"
)

// MailboxInfo identifies a relay mailbox to watch.
type MailboxInfo struct {
	// Username is the mailbox owner, used in /receive and /ws requests.
	Username string
}

// EventHandler is a callback invoked for each newly observed message.
// The event carries the recipient and the stored message including its
// packet. A returned error is logged and does not stop delivery.
type EventHandler func(ctx context.Context, event *api.PushEvent) error

// Strategy defines the interface for message delivery mechanisms.
// Implementations include PollingStrategy, WebSocketStrategy, and AutoStrategy.
//
// The typical lifecycle is:
//  1. Create a strategy with NewXxxStrategy(cfg)
//  2. Call Start(ctx, mailboxes, handler) to begin receiving events
//  3. Optionally call AddMailbox/RemoveMailbox to modify watched mailboxes
//  4. Call Stop() when done to release resources
//
// All implementations are safe for concurrent use.
type Strategy interface {
	// Start begins listening for messages on the given mailboxes.
	// Start returns immediately; event delivery is asynchronous.
	Start(ctx context.Context, mailboxes []MailboxInfo, handler EventHandler) error

	// Stop shuts down the strategy and waits for its goroutines to exit.
	// After Stop returns, no more events will be delivered.
	// Stop is idempotent.
	Stop() error

	// AddMailbox adds a mailbox to watch.
	AddMailbox(mailbox MailboxInfo) error

	// RemoveMailbox stops watching a mailbox.
	RemoveMailbox(username string) error

	// Name returns the strategy name for logging and debugging.
	// Examples: "polling", "websocket", "auto:websocket", "auto:polling"
	Name() string

	// OnReconnect sets a callback invoked after each successful push
	// connection. Polling never calls it. Use it to pull messages that
	// arrived while disconnected.
	OnReconnect(fn func(ctx context.Context))
}

// Config holds configuration shared by all delivery strategies.
type Config struct {
	// APIClient is the relay client.
	APIClient *api.Client

	// Dialer is used for WebSocket connections. Nil uses websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Logger receives delivery diagnostics. Nil discards them.
	Logger *slog.Logger

	// PollingInitialInterval is the starting interval between polls.
	// If zero, defaults to DefaultPollingInitialInterval.
	PollingInitialInterval time.Duration

	// PollingMaxBackoff is the maximum interval between polls.
	// If zero, defaults to DefaultPollingMaxBackoff.
	PollingMaxBackoff time.Duration

	// PollingBackoffMultiplier is the factor by which the interval
	// increases after each poll with no new messages.
	// If zero, defaults to DefaultPollingBackoffMultiplier.
	PollingBackoffMultiplier float64

	// PollingJitterFactor is the maximum random jitter added to
	// poll intervals (as a fraction of the interval).
	// If zero, defaults to DefaultPollingJitterFactor.
	PollingJitterFactor float64

	// WebSocketConnectionTimeout is how long auto mode waits for the push
	// connection before falling back to polling.
	// If zero, defaults to DefaultWebSocketConnectionTimeout.
	WebSocketConnectionTimeout time.Duration

	// WebSocketReconnectInterval is the base delay between reconnects.
	// If zero, defaults to DefaultWebSocketReconnectInterval.
	WebSocketReconnectInterval time.Duration

	// WebSocketMaxReconnectAttempts bounds consecutive failed connects.
	// If zero, defaults to DefaultWebSocketMaxReconnectAttempts.
	WebSocketMaxReconnectAttempts int
}

// Default configuration values.
const (
	DefaultPollingInitialInterval        = 2 * time.Second
	DefaultPollingMaxBackoff             = 30 * time.Second
	DefaultPollingBackoffMultiplier      = 1.5
	DefaultPollingJitterFactor           = 0.3
	DefaultWebSocketConnectionTimeout    = 5 * time.Second
	DefaultWebSocketReconnectInterval    = time.Second
	DefaultWebSocketMaxReconnectAttempts = 10
)

func (c Config) withDefaults() Config {
	if c.PollingInitialInterval == 0 {
		c.PollingInitialInterval = DefaultPollingInitialInterval
	}
	if c.PollingMaxBackoff == 0 {
		c.PollingMaxBackoff = DefaultPollingMaxBackoff
	}
	if c.PollingBackoffMultiplier == 0 {
		c.PollingBackoffMultiplier = DefaultPollingBackoffMultiplier
	}
	if c.PollingJitterFactor == 0 {
		c.PollingJitterFactor = DefaultPollingJitterFactor
	}
	if c.WebSocketConnectionTimeout == 0 {
		c.WebSocketConnectionTimeout = DefaultWebSocketConnectionTimeout
	}
	if c.WebSocketReconnectInterval == 0 {
		c.WebSocketReconnectInterval = DefaultWebSocketReconnectInterval
	}
	if c.WebSocketMaxReconnectAttempts == 0 {
		c.WebSocketMaxReconnectAttempts = DefaultWebSocketMaxReconnectAttempts
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

func dispatch(ctx context.Context, logger *slog.Logger, handler EventHandler, event *api.PushEvent) {
	if handler == nil {
		return
	}
	if err := handler(ctx, event); err != nil {
		logger.WarnContext(ctx, "message handler failed",
			slog.String("recipient", event.Recipient),
			slog.String("message_id", event.Message.ID),
			slog.Any("error", err),
		)
	}
}
