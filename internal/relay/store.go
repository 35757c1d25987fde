package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sealedvoice/client-go/internal/api"
	"github.com/sealedvoice/client-go/internal/crypto"
)

// ErrUserNotFound is returned when a username has never been registered.
var ErrUserNotFound = errors.New("user not found")

// Store is the in-memory user directory and mailbox table.
type Store struct {
	mu        sync.RWMutex
	users     map[string]api.UserKeys
	mailboxes map[string][]api.StoredMessage
	now       func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:     make(map[string]api.UserKeys),
		mailboxes: make(map[string][]api.StoredMessage),
		now:       time.Now,
	}
}

// Register stores a user's public keys, replacing any previous keys and
// emptying the user's mailbox.
func (s *Store) Register(username string, keys api.UserKeys) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = keys
	s.mailboxes[username] = []api.StoredMessage{}
}

// Send appends a packet to the recipient's mailbox. Both users must exist.
func (s *Store) Send(recipient, sender string, packet crypto.Packet) (api.StoredMessage, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return api.StoredMessage{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[recipient]; !ok {
		return api.StoredMessage{}, ErrUserNotFound
	}
	if _, ok := s.users[sender]; !ok {
		return api.StoredMessage{}, ErrUserNotFound
	}

	msg := api.StoredMessage{
		ID:             id.String(),
		SenderUsername: sender,
		Packet:         packet,
		ReceivedAt:     s.now().UTC(),
	}
	s.mailboxes[recipient] = append(s.mailboxes[recipient], msg)
	return msg, nil
}

// Receive returns a copy of every message in the user's mailbox.
func (s *Store) Receive(username string) ([]api.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[username]; !ok {
		return nil, ErrUserNotFound
	}
	messages := s.mailboxes[username]
	out := make([]api.StoredMessage, len(messages))
	copy(out, messages)
	return out, nil
}

// User returns one user's public keys.
func (s *Store) User(username string) (api.UserKeys, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, ok := s.users[username]
	if !ok {
		return api.UserKeys{}, ErrUserNotFound
	}
	return keys, nil
}

// Users returns a snapshot of every registered user.
func (s *Store) Users() map[string]api.UserKeys {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]api.UserKeys, len(s.users))
	for name, keys := range s.users {
		out[name] = keys
	}
	return out
}
