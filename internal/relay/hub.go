package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sealedvoice/client-go/internal/api"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
	sendBuffer     = 64
)

// Hub fans new_message events out to the WebSocket subscribers of each
// recipient.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *Metrics

	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{} // keyed by username
	closed bool
}

type subscriber struct {
	conn      *websocket.Conn
	usernames []string
	send      chan []byte
}

// NewHub creates a hub. Any origin may connect.
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
		subs:    make(map[string]map[*subscriber]struct{}),
	}
}

// Publish delivers an event to every connection subscribed to its recipient.
// Slow subscribers whose buffer is full miss the event; they recover it with
// a pull from /receive.
func (h *Hub) Publish(event api.PushEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode push event", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[event.Recipient] {
		select {
		case sub.send <- data:
		default:
			h.metrics.pushDropped()
			h.logger.Warn("push buffer full, dropping event",
				slog.String("recipient", event.Recipient),
				slog.String("message_id", event.Message.ID),
			)
		}
	}
}

// Serve upgrades the request and streams events for the given usernames
// until the client disconnects or the hub closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, usernames []string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", slog.Any("error", err))
		return
	}

	sub := &subscriber{conn: conn, usernames: usernames, send: make(chan []byte, sendBuffer)}
	if !h.add(sub) {
		conn.Close()
		return
	}
	h.logger.Debug("push subscriber connected", slog.Any("usernames", usernames))

	done := make(chan struct{})
	go func() {
		defer close(done)
		sub.writePump()
	}()

	sub.readPump()
	h.remove(sub)
	<-done
	h.logger.Debug("push subscriber disconnected", slog.Any("usernames", usernames))
}

// Close disconnects every subscriber. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.subs {
		for sub := range set {
			sub.conn.Close()
		}
	}
}

func (h *Hub) add(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	for _, name := range sub.usernames {
		set, ok := h.subs[name]
		if !ok {
			set = make(map[*subscriber]struct{})
			h.subs[name] = set
		}
		set[sub] = struct{}{}
	}
	h.metrics.pushConnected()
	return true
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	for _, name := range sub.usernames {
		delete(h.subs[name], sub)
		if len(h.subs[name]) == 0 {
			delete(h.subs, name)
		}
	}
	h.mu.Unlock()
	h.metrics.pushDisconnected()
	close(sub.send)
}

// subscribers returns how many connections watch username.
func (h *Hub) subscribers(username string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[username])
}

func (s *subscriber) readPump() {
	s.conn.SetReadLimit(maxInboundSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				// Unblock readPump so the subscriber is removed.
				s.conn.Close()
				for range s.send {
				}
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				for range s.send {
				}
				return
			}
		}
	}
}
