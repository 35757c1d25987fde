package sealedvoice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sealedvoice/client-go/internal/api"
	"github.com/sealedvoice/client-go/internal/delivery"
)

// eventTimeout bounds directory lookup and verification of one pushed
// message.
const eventTimeout = 30 * time.Second

// Client talks to a relay: it registers identities, resolves directory
// entries, sends sealed packets and receives verified messages.
//
// Client implements Directory. Lookups always query the relay so a
// re-registered user's new keys are used immediately.
type Client struct {
	apiClient *api.Client
	cfg       *clientConfig
	logger    *slog.Logger

	mu         sync.RWMutex
	closed     bool
	strategy   delivery.Strategy
	started    bool
	identities map[string]*Identity            // subscribed mailboxes
	seen       map[string]map[string]struct{} // username -> delivered message IDs

	// startMu serializes the lazy strategy start, which may block while
	// auto mode waits for the push channel.
	startMu sync.Mutex

	subs *subscriptionManager
	wg   sync.WaitGroup // background mailbox syncs

	strategyCtx    context.Context
	strategyCancel context.CancelFunc
}

var _ Directory = (*Client)(nil)

// buildAPIClient creates and configures an API client from the given config.
func buildAPIClient(cfg *clientConfig) (*api.Client, error) {
	apiOpts := []api.Option{
		api.WithBaseURL(cfg.baseURL),
	}
	if cfg.timeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(cfg.timeout))
	}
	if cfg.retries != 0 {
		apiOpts = append(apiOpts, api.WithRetries(cfg.retries))
	}
	if len(cfg.retryOn) > 0 {
		apiOpts = append(apiOpts, api.WithRetryOn(cfg.retryOn))
	}
	if cfg.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(cfg.httpClient))
	}
	return api.New(apiOpts...)
}

// createDeliveryStrategy creates a delivery strategy based on the config.
func createDeliveryStrategy(cfg *clientConfig, apiClient *api.Client, logger *slog.Logger) delivery.Strategy {
	deliveryCfg := delivery.Config{
		APIClient:                  apiClient,
		Logger:                     logger,
		PollingInitialInterval:     cfg.pollingInitialInterval,
		PollingMaxBackoff:          cfg.pollingMaxBackoff,
		PollingBackoffMultiplier:   cfg.pollingBackoffMultiplier,
		PollingJitterFactor:        cfg.pollingJitterFactor,
		WebSocketConnectionTimeout: cfg.webSocketConnectionTimeout,
		WebSocketReconnectInterval: cfg.webSocketReconnectInterval,
	}
	switch cfg.deliveryStrategy {
	case StrategyPolling:
		return delivery.NewPollingStrategy(deliveryCfg)
	case StrategyWebSocket:
		return delivery.NewWebSocketStrategy(deliveryCfg)
	default:
		return delivery.NewAutoStrategy(deliveryCfg)
	}
}

// New creates a client for the relay. It makes no network calls; delivery
// starts with the first Subscribe.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		baseURL:           defaultBaseURL,
		deliveryStrategy:  StrategyAuto,
		timeout:           defaultTimeout,
		verifyConcurrency: DefaultVerifyConcurrency,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch cfg.deliveryStrategy {
	case StrategyAuto, StrategyWebSocket, StrategyPolling:
	default:
		return nil, fmt.Errorf("unknown delivery strategy %q", cfg.deliveryStrategy)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	apiClient, err := buildAPIClient(cfg)
	if err != nil {
		return nil, err
	}

	strategyCtx, strategyCancel := context.WithCancel(context.Background())

	c := &Client{
		apiClient:      apiClient,
		cfg:            cfg,
		logger:         logger,
		strategy:       createDeliveryStrategy(cfg, apiClient, logger),
		identities:     make(map[string]*Identity),
		seen:           make(map[string]map[string]struct{}),
		subs:           newSubscriptionManager(),
		strategyCtx:    strategyCtx,
		strategyCancel: strategyCancel,
	}

	// Pull anything that arrived while the push channel was down.
	c.strategy.OnReconnect(c.syncAllMailboxes)

	return c, nil
}

// checkClosed returns ErrClientClosed if the client has been closed.
func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// Health checks that the relay is reachable.
func (c *Client) Health(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return wrapError(c.apiClient.Health(ctx))
}

// Register publishes the identity's public keys under its username.
// Registering an existing username replaces its keys and empties its
// mailbox on the relay.
func (c *Client) Register(ctx context.Context, id *Identity) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if id == nil {
		return errNilIdentity
	}

	keys := id.ExportPublic()
	err := c.apiClient.Register(ctx, api.RegisterRequest{
		Username:      id.Username(),
		RSAPublicKey:  keys.Encryption,
		SignPublicKey: keys.Signing,
	})
	if err != nil {
		return wrapError(err)
	}

	c.logger.DebugContext(ctx, "identity registered", slog.String("username", id.Username()))
	return nil
}

// Lookup implements Directory by querying the relay.
func (c *Client) Lookup(ctx context.Context, username string) (*DirectoryEntry, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	keys, err := c.apiClient.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, api.ErrUserNotFound) {
			return nil, &DirectoryLookupError{Username: username, Err: wrapError(err)}
		}
		return nil, wrapError(err)
	}
	return &DirectoryEntry{
		Username: username,
		Keys:     PublicKeys{Encryption: keys.RSAPublicKey, Signing: keys.SignPublicKey},
	}, nil
}

// Users returns every registered user, sorted by username.
func (c *Client) Users(ctx context.Context) ([]DirectoryEntry, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	users, err := c.apiClient.ListUsers(ctx)
	if err != nil {
		return nil, wrapError(err)
	}

	entries := make([]DirectoryEntry, 0, len(users))
	for name, keys := range users {
		entries = append(entries, DirectoryEntry{
			Username: name,
			Keys:     PublicKeys{Encryption: keys.RSAPublicKey, Signing: keys.SignPublicKey},
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Username < entries[j].Username })
	return entries, nil
}

// Send looks up recipient, seals payload for them as from, and stores the
// packet on the relay. It returns the relay message ID.
func (c *Client) Send(ctx context.Context, from *Identity, recipient string, payload []byte) (string, error) {
	if err := c.checkClosed(); err != nil {
		return "", err
	}
	if from == nil {
		return "", errors.New("sender identity is nil")
	}

	entry, err := c.Lookup(ctx, recipient)
	if err != nil {
		return "", err
	}

	packet, err := from.Seal(ctx, payload, entry)
	if err != nil {
		return "", err
	}

	return c.SendPacket(ctx, from.Username(), recipient, packet)
}

// SendPacket stores an already sealed packet on the relay.
func (c *Client) SendPacket(ctx context.Context, sender, recipient string, packet Packet) (string, error) {
	if err := c.checkClosed(); err != nil {
		return "", err
	}

	msgID, err := c.apiClient.Send(ctx, api.SendRequest{
		Recipient: recipient,
		Sender:    sender,
		Packet:    packet,
	})
	if err != nil {
		return "", wrapError(err)
	}

	c.logger.DebugContext(ctx, "message sent",
		slog.String("sender", sender),
		slog.String("recipient", recipient),
		slog.String("message_id", msgID),
	)
	return msgID, nil
}

// Fetch lists the envelopes in a mailbox without verifying them.
func (c *Client) Fetch(ctx context.Context, username string) ([]Envelope, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	stored, err := c.apiClient.Receive(ctx, username)
	if err != nil {
		return nil, wrapError(err)
	}

	envelopes := make([]Envelope, 0, len(stored))
	seen := make(map[string]struct{}, len(stored))
	for _, msg := range stored {
		if msg.ID != "" {
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
		}
		envelopes = append(envelopes, envelopeFromStored(username, msg))
	}
	return envelopes, nil
}

// Receive fetches the identity's mailbox and verifies every message. Each
// message reports its own outcome; one bad packet does not hide the others.
func (c *Client) Receive(ctx context.Context, id *Identity) ([]*Message, error) {
	if id == nil {
		return nil, errNilIdentity
	}

	envelopes, err := c.Fetch(ctx, id.Username())
	if err != nil {
		return nil, err
	}
	return OpenAll(ctx, id, c, envelopes, c.cfg.verifyConcurrency), nil
}

// Subscribe delivers verified messages arriving in the identity's mailbox
// until ctx is canceled. Messages that fail verification are delivered too,
// with Message.Err set.
//
// The channel is not closed when the context is cancelled; use a select
// on ctx.Done() to detect cancellation.
//
// Example:
//
//	ch, err := client.Subscribe(ctx, bob)
//	if err != nil {
//	    return err
//	}
//	for {
//	    select {
//	    case <-ctx.Done():
//	        return nil
//	    case msg := <-ch:
//	        if msg.Err != nil {
//	            log.Printf("rejected %s from %s: %v", msg.ID, msg.Sender, msg.Err)
//	            continue
//	        }
//	        play(msg.Plaintext)
//	    }
//	}
func (c *Client) Subscribe(ctx context.Context, id *Identity) (<-chan *Message, error) {
	if id == nil {
		return nil, errNilIdentity
	}

	ch := make(chan *Message, 16)
	username := id.Username()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.identities[username] = id
	if c.seen[username] == nil {
		c.seen[username] = make(map[string]struct{})
	}
	c.mu.Unlock()

	unsubscribe, first := c.subs.subscribe(username, func(msg *Message) {
		// Deliver without blocking the event source.
		go func() {
			select {
			case ch <- msg:
			case <-ctx.Done():
			}
		}()
	})

	if first {
		if err := c.watchMailbox(ctx, username); err != nil {
			c.release(username, unsubscribe)
			return nil, err
		}
	}

	go func() {
		<-ctx.Done()
		c.release(username, unsubscribe)
	}()

	return ch, nil
}

// SubscribeFunc calls fn for each message until ctx is cancelled.
// This is a convenience wrapper around Subscribe for simpler use cases.
func (c *Client) SubscribeFunc(ctx context.Context, id *Identity, fn func(*Message)) error {
	messages, err := c.Subscribe(ctx, id)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-messages:
			if msg != nil {
				fn(msg)
			}
		}
	}
}

// watchMailbox adds a mailbox to the delivery strategy, starting it on first
// use.
func (c *Client) watchMailbox(ctx context.Context, username string) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()

	mailbox := delivery.MailboxInfo{Username: username}
	if started {
		return c.strategy.AddMailbox(mailbox)
	}

	if err := c.strategy.Start(c.strategyCtx, []delivery.MailboxInfo{mailbox}, c.handleEvent); err != nil {
		return fmt.Errorf("start delivery strategy: %w", err)
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "delivery started", slog.String("strategy", c.strategy.Name()))

	// Push only sees new messages; pull what is already stored.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.syncMailbox(c.strategyCtx, username)
	}()
	return nil
}

// release drops a subscription and stops watching the mailbox when it was
// the last one.
func (c *Client) release(username string, unsubscribe func() bool) {
	if !unsubscribe() {
		return
	}

	c.mu.Lock()
	delete(c.identities, username)
	delete(c.seen, username)
	closed := c.closed
	c.mu.Unlock()

	if !closed {
		_ = c.strategy.RemoveMailbox(username)
	}
}

// handleEvent verifies a delivered message and notifies subscribers.
func (c *Client) handleEvent(ctx context.Context, event *api.PushEvent) error {
	if event == nil {
		return nil
	}
	username := event.Recipient

	c.mu.Lock()
	id := c.identities[username]
	seen := c.seen[username]
	if id == nil || seen == nil {
		c.mu.Unlock()
		return nil
	}
	if event.Message.ID != "" {
		if _, dup := seen[event.Message.ID]; dup {
			c.mu.Unlock()
			return nil
		}
		seen[event.Message.ID] = struct{}{}
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	msg := openEnvelope(ctx, id, c, envelopeFromStored(username, event.Message))
	if msg.Err != nil && isTransient(msg.Err) {
		// Leave the message unseen so the next sync retries it.
		c.mu.Lock()
		if seen := c.seen[username]; seen != nil {
			delete(seen, event.Message.ID)
		}
		c.mu.Unlock()
		return msg.Err
	}
	c.subs.notify(username, msg)
	return msg.Err
}

// isTransient reports whether err may succeed on a later attempt.
func isTransient(err error) bool {
	var (
		netErr *NetworkError
		apiErr *APIError
	)
	switch {
	case errors.As(err, &netErr):
		return true
	case errors.As(err, &apiErr):
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// syncMailbox pulls a mailbox and feeds unseen messages to handleEvent.
func (c *Client) syncMailbox(ctx context.Context, username string) {
	stored, err := c.apiClient.Receive(ctx, username)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.WarnContext(ctx, "mailbox sync failed",
				slog.String("mailbox", username),
				slog.Any("error", err),
			)
		}
		return
	}

	for i := range stored {
		if ctx.Err() != nil {
			return
		}
		event := &api.PushEvent{Event: api.EventNewMessage, Recipient: username, Message: stored[i]}
		if err := c.handleEvent(ctx, event); err != nil {
			c.logger.WarnContext(ctx, "message rejected",
				slog.String("mailbox", username),
				slog.String("message_id", stored[i].ID),
				slog.Any("error", err),
			)
		}
	}
}

// syncAllMailboxes pulls every watched mailbox. Called after each push
// reconnect.
func (c *Client) syncAllMailboxes(ctx context.Context) {
	for _, username := range c.subs.usernames() {
		c.syncMailbox(ctx, username)
	}
}

// StrategyName reports the active delivery strategy, for example
// "auto:websocket".
func (c *Client) StrategyName() string {
	return c.strategy.Name()
}

// Close stops delivery and releases resources. Identities are not
// discarded; callers own them.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.identities = make(map[string]*Identity)
	c.seen = make(map[string]map[string]struct{})
	c.mu.Unlock()

	c.subs.clear()
	c.strategyCancel()
	err := c.strategy.Stop()
	c.wg.Wait()
	return err
}
