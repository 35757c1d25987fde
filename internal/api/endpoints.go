package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Register publishes a user's public keys. Registering an existing username
// overwrites its keys and empties its mailbox.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	var result Response
	return c.Do(ctx, http.MethodPost, "/register", req, &result)
}

// Send stores a packet in the recipient's mailbox and returns the message ID.
func (c *Client) Send(ctx context.Context, req SendRequest) (string, error) {
	var result SendResponse
	if err := c.Do(ctx, http.MethodPost, "/send", req, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// Receive lists every message in a mailbox. Messages are not removed.
func (c *Client) Receive(ctx context.Context, username string) ([]StoredMessage, error) {
	path := fmt.Sprintf("/receive/%s", url.PathEscape(username))
	var result ReceiveResponse
	if err := c.Do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// ListUsers returns every registered user and their public keys.
func (c *Client) ListUsers(ctx context.Context) (map[string]UserKeys, error) {
	var result UsersResponse
	if err := c.Do(ctx, http.MethodGet, "/get_users", nil, &result); err != nil {
		return nil, err
	}
	if result.Users == nil {
		result.Users = map[string]UserKeys{}
	}
	return result.Users, nil
}

// GetUser returns one user's public keys.
func (c *Client) GetUser(ctx context.Context, username string) (*UserKeys, error) {
	path := fmt.Sprintf("/users/%s", url.PathEscape(username))
	var result UserResponse
	if err := c.Do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result.Keys, nil
}

// Health checks that the relay is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.Do(ctx, http.MethodGet, "/health", nil, nil)
}

// WebSocketURL returns the push endpoint URL subscribed to the given mailboxes.
func (c *Client) WebSocketURL(usernames ...string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("unsupported base URL scheme: " + u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"username": usernames}.Encode()
	return u.String(), nil
}
