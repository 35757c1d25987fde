package api

import (
	"time"

	"github.com/sealedvoice/client-go/internal/crypto"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// EventNewMessage is the push event emitted when a message is stored.
const EventNewMessage = "new_message"

// Response is the envelope every relay response carries.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// UserKeys are the public keys a user registered.
type UserKeys struct {
	RSAPublicKey  string `json:"rsaPublicKey"`
	SignPublicKey string `json:"signPublicKey"`
}

// RegisterRequest represents the POST /register request.
type RegisterRequest struct {
	Username      string `json:"username"`
	RSAPublicKey  string `json:"rsaPublicKey"`
	SignPublicKey string `json:"signPublicKey"`
}

// SendRequest represents the POST /send request.
type SendRequest struct {
	Recipient string        `json:"recipient"`
	Sender    string        `json:"sender"`
	Packet    crypto.Packet `json:"packet"`
}

// SendResponse represents the POST /send response.
type SendResponse struct {
	Response
	ID string `json:"id,omitempty"`
}

// StoredMessage is one mailbox entry.
type StoredMessage struct {
	ID             string        `json:"id"`
	SenderUsername string        `json:"sender_username"`
	Packet         crypto.Packet `json:"packet"`
	ReceivedAt     time.Time     `json:"received_at"`
}

// ReceiveResponse represents the GET /receive/{username} response.
type ReceiveResponse struct {
	Response
	Messages []StoredMessage `json:"messages"`
}

// UsersResponse represents the GET /get_users response.
type UsersResponse struct {
	Response
	Users map[string]UserKeys `json:"users"`
}

// UserResponse represents the GET /users/{username} response.
type UserResponse struct {
	Response
	Username string   `json:"username"`
	Keys     UserKeys `json:"keys"`
}

// PushEvent is a message pushed over the WebSocket channel.
type PushEvent struct {
	Event     string        `json:"event"`
	Recipient string        `json:"recipient"`
	Message   StoredMessage `json:"message"`
}
