package sealedvoice

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// subscription represents an active mailbox subscription.
type subscription struct {
	id       string
	username string
	callback func(*Message)
	active   atomic.Bool
}

// subscriptionManager handles message subscriptions with safe lifecycle management.
// It ensures callbacks are never invoked after unsubscription completes.
type subscriptionManager struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*subscription // username -> subID -> subscription
	nextID atomic.Uint64
}

func newSubscriptionManager() *subscriptionManager {
	return &subscriptionManager{
		subs: make(map[string]map[string]*subscription),
	}
}

// subscribe registers a callback for messages arriving in the given mailbox.
// It returns an unsubscribe function and whether this is the mailbox's first
// subscription.
func (m *subscriptionManager) subscribe(username string, callback func(*Message)) (unsubscribe func() bool, first bool) {
	id := strconv.FormatUint(m.nextID.Add(1), 10)

	sub := &subscription{
		id:       id,
		username: username,
		callback: callback,
	}
	sub.active.Store(true)

	m.mu.Lock()
	if m.subs[username] == nil {
		m.subs[username] = make(map[string]*subscription)
		first = true
	}
	m.subs[username][id] = sub
	m.mu.Unlock()

	return func() bool {
		return m.unsubscribe(username, id)
	}, first
}

// unsubscribe removes a subscription and reports whether the mailbox has no
// subscribers left. Safe to call multiple times.
func (m *subscriptionManager) unsubscribe(username, subID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	mailboxSubs, ok := m.subs[username]
	if !ok {
		return false
	}
	sub, ok := mailboxSubs[subID]
	if !ok {
		return false
	}
	sub.active.Store(false) // Mark inactive before removing
	delete(mailboxSubs, subID)
	if len(mailboxSubs) == 0 {
		delete(m.subs, username)
		return true
	}
	return false
}

// notify calls all registered callbacks for the given mailbox.
// Callbacks run after the read lock is released and only while active.
func (m *subscriptionManager) notify(username string, msg *Message) {
	m.mu.RLock()
	mailboxSubs := m.subs[username]
	if len(mailboxSubs) == 0 {
		m.mu.RUnlock()
		return
	}

	subs := make([]*subscription, 0, len(mailboxSubs))
	for _, sub := range mailboxSubs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.callback(msg)
		}
	}
}

// usernames returns the mailboxes with at least one subscriber.
func (m *subscriptionManager) usernames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.subs))
	for name := range m.subs {
		names = append(names, name)
	}
	return names
}

// clear removes all subscriptions. Called during Client.Close().
func (m *subscriptionManager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mailboxSubs := range m.subs {
		for _, sub := range mailboxSubs {
			sub.active.Store(false)
		}
	}
	m.subs = make(map[string]map[string]*subscription)
}
