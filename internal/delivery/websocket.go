package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sealedvoice/client-go/internal/api"
)

// errMailboxesChanged closes the current connection so the next one
// subscribes to the updated mailbox set.
var errMailboxesChanged = errors.New("mailboxes changed")

// WebSocketStrategy implements message delivery via the relay /ws push channel.
type WebSocketStrategy struct {
	cfg         Config
	apiClient   *api.Client
	mailboxes   map[string]struct{}
	handler     EventHandler
	onReconnect func(ctx context.Context)
	cancel      context.CancelFunc
	conn        *websocket.Conn
	changed     chan struct{}
	wg          sync.WaitGroup
	mu          sync.RWMutex
	attempts    int
	started     bool

	connected     chan struct{} // closed once the first connection is up
	connectedOnce sync.Once
	lastError     error
}

// NewWebSocketStrategy creates a new WebSocket strategy.
func NewWebSocketStrategy(cfg Config) *WebSocketStrategy {
	cfg = cfg.withDefaults()
	return &WebSocketStrategy{
		cfg:       cfg,
		apiClient: cfg.APIClient,
		mailboxes: make(map[string]struct{}),
		changed:   make(chan struct{}, 1),
		connected: make(chan struct{}),
	}
}

// Name returns the strategy name.
func (s *WebSocketStrategy) Name() string {
	return "websocket"
}

// Connected returns a channel that is closed when the first connection is established.
func (s *WebSocketStrategy) Connected() <-chan struct{} {
	return s.connected
}

// LastError returns the last connection error, if any.
func (s *WebSocketStrategy) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// OnReconnect sets a callback invoked after every successful connection.
func (s *WebSocketStrategy) OnReconnect(fn func(ctx context.Context)) {
	s.mu.Lock()
	s.onReconnect = fn
	s.mu.Unlock()
}

// Start begins listening for pushed messages on the given mailboxes.
func (s *WebSocketStrategy) Start(ctx context.Context, mailboxes []MailboxInfo, handler EventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	for _, mb := range mailboxes {
		s.mailboxes[mb.Username] = struct{}{}
	}
	s.handler = handler
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.connectLoop(ctx)
	}()
	return nil
}

// Stop closes the connection and waits for the read loop to exit.
func (s *WebSocketStrategy) Stop() error {
	s.mu.Lock()
	s.started = false
	cancel := s.cancel
	conn := s.conn
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	s.wg.Wait()
	return nil
}

// AddMailbox adds a mailbox and resubscribes.
func (s *WebSocketStrategy) AddMailbox(mailbox MailboxInfo) error {
	s.mu.Lock()
	_, exists := s.mailboxes[mailbox.Username]
	s.mailboxes[mailbox.Username] = struct{}{}
	s.mu.Unlock()

	if !exists {
		s.resubscribe()
	}
	return nil
}

// RemoveMailbox removes a mailbox and resubscribes.
func (s *WebSocketStrategy) RemoveMailbox(username string) error {
	s.mu.Lock()
	_, exists := s.mailboxes[username]
	delete(s.mailboxes, username)
	s.mu.Unlock()

	if exists {
		s.resubscribe()
	}
	return nil
}

func (s *WebSocketStrategy) resubscribe() {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	select {
	case s.changed <- struct{}{}:
	default:
	}
	if conn != nil {
		conn.Close()
	}
}

func (s *WebSocketStrategy) usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.mailboxes))
	for name := range s.mailboxes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *WebSocketStrategy) setLastError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}

func (s *WebSocketStrategy) connectLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		names := s.usernames()
		if len(names) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-s.changed:
				continue
			}
		}

		err := s.connect(ctx, names)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errMailboxesChanged) {
			continue
		}

		s.attempts++
		if s.attempts >= s.cfg.WebSocketMaxReconnectAttempts {
			s.cfg.Logger.WarnContext(ctx, "websocket giving up",
				slog.Int("attempts", s.attempts),
				slog.Any("error", err),
			)
			return
		}

		wait := s.cfg.WebSocketReconnectInterval * time.Duration(1<<(s.attempts-1))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.changed:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (s *WebSocketStrategy) connect(ctx context.Context, names []string) error {
	if s.apiClient == nil {
		err := errors.New("websocket strategy: API client is nil")
		s.setLastError(err)
		return err
	}

	target, err := s.apiClient.WebSocketURL(names...)
	if err != nil {
		s.setLastError(err)
		return err
	}

	conn, resp, err := s.cfg.Dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		s.setLastError(err)
		return err
	}

	s.mu.Lock()
	s.conn = conn
	handler := s.handler
	onReconnect := s.onReconnect
	s.mu.Unlock()

	stopClose := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stopClose()
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		conn.Close()
	}()

	// The mailbox set changed while dialing.
	select {
	case <-s.changed:
		return errMailboxesChanged
	default:
	}

	s.attempts = 0
	s.connectedOnce.Do(func() { close(s.connected) })
	s.cfg.Logger.DebugContext(ctx, "websocket connected", slog.Int("mailboxes", len(names)))

	if onReconnect != nil {
		onReconnect(ctx)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.changed:
				return errMailboxesChanged
			default:
			}
			s.setLastError(err)
			return err
		}

		var event api.PushEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		if event.Event != "" && event.Event != api.EventNewMessage {
			continue
		}
		dispatch(ctx, s.cfg.Logger, handler, &event)
	}
}
