package sealedvoice

import "context"

// DirectoryEntry is a registered user's public keys.
type DirectoryEntry struct {
	Username string     `json:"username"`
	Keys     PublicKeys `json:"keys"`
}

// Directory resolves usernames to public keys.
//
// Implementations must not serve stale keys: a user who re-registers gets new
// keys, and a sender or verifier using the old ones would fail. Client
// queries the relay on every call.
type Directory interface {
	// Lookup returns the entry for username. An unknown username returns an
	// error matching ErrUserNotFound.
	Lookup(ctx context.Context, username string) (*DirectoryEntry, error)
}

// StaticDirectory is an in-memory Directory, useful for tests and offline
// verification.
type StaticDirectory map[string]PublicKeys

// Lookup implements Directory.
func (d StaticDirectory) Lookup(ctx context.Context, username string) (*DirectoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys, ok := d[username]
	if !ok {
		return nil, &DirectoryLookupError{Username: username}
	}
	return &DirectoryEntry{Username: username, Keys: keys}, nil
}
