package delivery

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sealedvoice/client-go/internal/api"
)

// PollingStrategy implements message delivery by polling /receive.
//
// The relay never deletes messages, so every poll returns the whole mailbox.
// Each mailbox keeps the set of message IDs already delivered and only new
// IDs reach the handler.
type PollingStrategy struct {
	cfg       Config
	apiClient *api.Client
	mailboxes map[string]*polledMailbox // keyed by username
	handler   EventHandler
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	started   bool
}

type polledMailbox struct {
	username  string
	seen      map[string]struct{}
	lastCount int
	interval  time.Duration
}

// NewPollingStrategy creates a new polling strategy.
func NewPollingStrategy(cfg Config) *PollingStrategy {
	cfg = cfg.withDefaults()
	return &PollingStrategy{
		cfg:       cfg,
		apiClient: cfg.APIClient,
		mailboxes: make(map[string]*polledMailbox),
	}
}

// Name returns the strategy name.
func (p *PollingStrategy) Name() string {
	return "polling"
}

// OnReconnect is a no-op; polling has no persistent connection.
func (p *PollingStrategy) OnReconnect(fn func(ctx context.Context)) {}

// Start begins polling the given mailboxes.
func (p *PollingStrategy) Start(ctx context.Context, mailboxes []MailboxInfo, handler EventHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}
	p.handler = handler
	for _, mb := range mailboxes {
		p.mailboxes[mb.Username] = p.newMailbox(mb.Username)
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.pollLoop(ctx)
	}()
	return nil
}

// Stop cancels polling and waits for the poll loop to exit.
func (p *PollingStrategy) Stop() error {
	p.mu.Lock()
	p.started = false
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	return nil
}

// AddMailbox adds a mailbox to poll.
func (p *PollingStrategy) AddMailbox(mailbox MailboxInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.mailboxes[mailbox.Username]; !exists {
		p.mailboxes[mailbox.Username] = p.newMailbox(mailbox.Username)
	}
	return nil
}

// RemoveMailbox stops polling a mailbox.
func (p *PollingStrategy) RemoveMailbox(username string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.mailboxes, username)
	return nil
}

func (p *PollingStrategy) newMailbox(username string) *polledMailbox {
	return &polledMailbox{
		username: username,
		seen:     make(map[string]struct{}),
		interval: p.cfg.PollingInitialInterval,
	}
}

func (p *PollingStrategy) pollLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		wait := p.pollAll(ctx)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// pollAll polls every mailbox once and returns the shortest wait until the
// next poll.
func (p *PollingStrategy) pollAll(ctx context.Context) time.Duration {
	p.mu.RLock()
	list := make([]*polledMailbox, 0, len(p.mailboxes))
	for _, mb := range p.mailboxes {
		list = append(list, mb)
	}
	p.mu.RUnlock()

	if len(list) == 0 {
		return p.cfg.PollingInitialInterval
	}

	var minWait time.Duration
	for _, mb := range list {
		p.pollMailbox(ctx, mb)
		if wait := p.waitDuration(mb); minWait == 0 || wait < minWait {
			minWait = wait
		}
	}
	return minWait
}

func (p *PollingStrategy) pollMailbox(ctx context.Context, mb *polledMailbox) {
	if p.apiClient == nil {
		return
	}

	messages, err := p.apiClient.Receive(ctx, mb.username)
	if err != nil {
		if ctx.Err() == nil {
			p.cfg.Logger.DebugContext(ctx, "poll failed",
				slog.String("mailbox", mb.username),
				slog.Any("error", err),
			)
		}
		mb.interval = p.backoff(mb.interval)
		return
	}

	// A re-registration empties the mailbox on the relay.
	if len(messages) < mb.lastCount {
		mb.seen = make(map[string]struct{})
	}
	mb.lastCount = len(messages)

	p.mu.RLock()
	handler := p.handler
	p.mu.RUnlock()

	fresh := 0
	for i := range messages {
		msg := messages[i]
		if _, seen := mb.seen[msg.ID]; seen {
			continue
		}
		mb.seen[msg.ID] = struct{}{}
		fresh++
		dispatch(ctx, p.cfg.Logger, handler, &api.PushEvent{
			Event:     api.EventNewMessage,
			Recipient: mb.username,
			Message:   msg,
		})
	}

	if fresh > 0 {
		mb.interval = p.cfg.PollingInitialInterval
	} else {
		mb.interval = p.backoff(mb.interval)
	}
}

func (p *PollingStrategy) backoff(interval time.Duration) time.Duration {
	return min(time.Duration(float64(interval)*p.cfg.PollingBackoffMultiplier), p.cfg.PollingMaxBackoff)
}

func (p *PollingStrategy) waitDuration(mb *polledMailbox) time.Duration {
	jitter := time.Duration(rand.Float64() * p.cfg.PollingJitterFactor * float64(mb.interval))
	return mb.interval + jitter
}
