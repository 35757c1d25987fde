package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"github.com/sealedvoice/client-go/internal/api"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// fakeRelay serves /receive/{username} from memory and optionally /ws.
type fakeRelay struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	mailboxes map[string][]api.StoredMessage
	conns     map[*websocket.Conn][]string
	polls     int
	dials     int
	nextID    int
}

func newFakeRelay(t *testing.T, withWebSocket bool) *fakeRelay {
	t.Helper()
	r := &fakeRelay{
		t:         t,
		mailboxes: make(map[string][]api.StoredMessage),
		conns:     make(map[*websocket.Conn][]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /receive/{username}", r.handleReceive)
	if withWebSocket {
		mux.HandleFunc("GET /ws", r.handleWebSocket)
	}
	r.server = httptest.NewServer(mux)
	t.Cleanup(r.close)
	return r
}

func (r *fakeRelay) close() {
	r.mu.Lock()
	for conn := range r.conns {
		conn.Close()
	}
	r.mu.Unlock()
	r.server.CloseClientConnections()
	r.server.Close()
}

func (r *fakeRelay) client() *api.Client {
	r.t.Helper()
	client, err := api.NewClient(api.Config{
		BaseURL:    r.server.URL,
		HTTPClient: &http.Client{Transport: &http.Transport{DisableKeepAlives: true}},
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		r.t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func (r *fakeRelay) config() Config {
	return Config{
		APIClient:                  r.client(),
		PollingInitialInterval:     10 * time.Millisecond,
		PollingMaxBackoff:          40 * time.Millisecond,
		WebSocketConnectionTimeout: 500 * time.Millisecond,
		WebSocketReconnectInterval: 10 * time.Millisecond,
	}
}

func (r *fakeRelay) handleReceive(w http.ResponseWriter, req *http.Request) {
	username := req.PathValue("username")
	r.mu.Lock()
	r.polls++
	messages, ok := r.mailboxes[username]
	messages = append([]api.StoredMessage(nil), messages...)
	r.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(api.Response{Status: api.StatusError, Message: "User not found"})
		return
	}
	json.NewEncoder(w).Encode(api.ReceiveResponse{
		Response: api.Response{Status: api.StatusSuccess},
		Messages: messages,
	})
}

func (r *fakeRelay) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.dials++
	r.conns[conn] = req.URL.Query()["username"]
	r.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	r.mu.Lock()
	delete(r.conns, conn)
	r.mu.Unlock()
	conn.Close()
}

// register creates an empty mailbox.
func (r *fakeRelay) register(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mailboxes[username]; !ok {
		r.mailboxes[username] = []api.StoredMessage{}
	}
}

// reset empties a mailbox the way re-registration does.
func (r *fakeRelay) reset(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mailboxes[username] = []api.StoredMessage{}
}

// deliver stores a message and pushes it to subscribed connections.
func (r *fakeRelay) deliver(recipient, sender string) api.StoredMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	msg := api.StoredMessage{
		ID:             fmt.Sprintf("m-%d", r.nextID),
		SenderUsername: sender,
		ReceivedAt:     time.Now().UTC(),
	}
	r.mailboxes[recipient] = append(r.mailboxes[recipient], msg)

	event := api.PushEvent{Event: api.EventNewMessage, Recipient: recipient, Message: msg}
	for conn, names := range r.conns {
		for _, name := range names {
			if name == recipient {
				conn.WriteJSON(event)
			}
		}
	}
	return msg
}

// subscribers returns the usernames of every open push connection.
func (r *fakeRelay) subscribers() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, 0, len(r.conns))
	for _, names := range r.conns {
		out = append(out, names)
	}
	return out
}

func (r *fakeRelay) pollCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.polls
}

func (r *fakeRelay) dialCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dials
}

// eventRecorder collects handler invocations.
type eventRecorder struct {
	mu     sync.Mutex
	events []*api.PushEvent
	notify chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{notify: make(chan struct{}, 64)}
}

func (e *eventRecorder) handle(_ context.Context, event *api.PushEvent) error {
	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()
	select {
	case e.notify <- struct{}{}:
	default:
	}
	return nil
}

func (e *eventRecorder) snapshot() []*api.PushEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*api.PushEvent(nil), e.events...)
}

// waitFor blocks until at least n events were recorded.
func (e *eventRecorder) waitFor(t *testing.T, n int) []*api.PushEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if events := e.snapshot(); len(events) >= n {
			return events
		}
		select {
		case <-e.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(e.snapshot()))
		}
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
