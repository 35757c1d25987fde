package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AutoStrategy tries WebSocket push first and falls back to polling when
// the push channel does not connect in time.
type AutoStrategy struct {
	cfg         Config
	mu          sync.RWMutex
	current     Strategy
	onReconnect func(ctx context.Context)
	pending     []MailboxInfo
}

// NewAutoStrategy creates a new auto strategy.
func NewAutoStrategy(cfg Config) *AutoStrategy {
	return &AutoStrategy{cfg: cfg.withDefaults()}
}

// Name returns the strategy name.
func (a *AutoStrategy) Name() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current != nil {
		return "auto:" + a.current.Name()
	}
	return "auto"
}

// OnReconnect sets the reconnect callback for the push channel.
func (a *AutoStrategy) OnReconnect(fn func(ctx context.Context)) {
	a.mu.Lock()
	a.onReconnect = fn
	current := a.current
	a.mu.Unlock()

	if current != nil {
		current.OnReconnect(fn)
	}
}

// Start begins listening for messages, trying WebSocket first then
// falling back to polling.
func (a *AutoStrategy) Start(ctx context.Context, mailboxes []MailboxInfo, handler EventHandler) error {
	a.mu.Lock()
	mailboxes = append(append([]MailboxInfo(nil), mailboxes...), a.pending...)
	a.pending = nil
	onReconnect := a.onReconnect
	a.mu.Unlock()

	ws := NewWebSocketStrategy(a.cfg)
	if onReconnect != nil {
		ws.OnReconnect(onReconnect)
	}
	if err := ws.Start(ctx, mailboxes, handler); err != nil {
		return a.startPolling(ctx, mailboxes, handler)
	}

	timer := time.NewTimer(a.cfg.WebSocketConnectionTimeout)
	defer timer.Stop()

	select {
	case <-ws.Connected():
		a.setCurrent(ws)
		return nil
	case <-timer.C:
		ws.Stop()
		a.cfg.Logger.InfoContext(ctx, "websocket unavailable, falling back to polling",
			slog.Any("error", ws.LastError()),
		)
		return a.startPolling(ctx, mailboxes, handler)
	case <-ctx.Done():
		ws.Stop()
		return ctx.Err()
	}
}

func (a *AutoStrategy) startPolling(ctx context.Context, mailboxes []MailboxInfo, handler EventHandler) error {
	polling := NewPollingStrategy(a.cfg)
	if err := polling.Start(ctx, mailboxes, handler); err != nil {
		return err
	}
	a.setCurrent(polling)
	return nil
}

func (a *AutoStrategy) setCurrent(s Strategy) {
	a.mu.Lock()
	a.current = s
	a.mu.Unlock()
}

// Stop shuts down the active strategy.
func (a *AutoStrategy) Stop() error {
	a.mu.RLock()
	current := a.current
	a.mu.RUnlock()

	if current != nil {
		return current.Stop()
	}
	return nil
}

// AddMailbox adds a mailbox to the active strategy, or queues it until Start.
func (a *AutoStrategy) AddMailbox(mailbox MailboxInfo) error {
	a.mu.Lock()
	current := a.current
	if current == nil {
		a.pending = append(a.pending, mailbox)
	}
	a.mu.Unlock()

	if current != nil {
		return current.AddMailbox(mailbox)
	}
	return nil
}

// RemoveMailbox removes a mailbox from the active strategy.
func (a *AutoStrategy) RemoveMailbox(username string) error {
	a.mu.Lock()
	current := a.current
	if current == nil {
		kept := a.pending[:0]
		for _, mb := range a.pending {
			if mb.Username != username {
				kept = append(kept, mb)
			}
		}
		a.pending = kept
	}
	a.mu.Unlock()

	if current != nil {
		return current.RemoveMailbox(username)
	}
	return nil
}
