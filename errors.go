package sealedvoice

import (
	"errors"
	"fmt"

	"github.com/sealedvoice/client-go/internal/api"
	"github.com/sealedvoice/client-go/internal/crypto"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrKeyFormat is returned when key text is malformed, too weak, or does
	// not serve the requested purpose.
	ErrKeyFormat = errors.New("invalid key format")

	// ErrPacketFormat is returned when a packet field is missing or malformed.
	ErrPacketFormat = errors.New("invalid packet format")

	// ErrIntegrity is returned when the packet digest does not cover its IV
	// and ciphertext.
	ErrIntegrity = errors.New("packet integrity check failed")

	// ErrAuthentication is returned when the sender's signature is invalid.
	ErrAuthentication = errors.New("sender authentication failed")

	// ErrKeyRecovery is returned when the session key cannot be recovered
	// with the recipient's private key.
	ErrKeyRecovery = errors.New("session key recovery failed")

	// ErrDecryption is returned when the payload cannot be decrypted.
	ErrDecryption = errors.New("decryption failed")

	// ErrUserNotFound is returned when a username is not registered.
	ErrUserNotFound = errors.New("user not found")

	// ErrIdentityDiscarded is returned when a discarded identity is used.
	ErrIdentityDiscarded = errors.New("identity has been discarded")

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")

	// ErrBadRequest is returned when the relay rejects a request as malformed.
	ErrBadRequest = errors.New("bad request")

	// ErrPayloadTooLarge is returned when a packet exceeds the relay size limit.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrRateLimited is returned when the relay rate limit is exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")
)

var errNilIdentity = errors.New("identity is nil")

// SealedVoiceError is implemented by all SDK errors.
type SealedVoiceError interface {
	error
	SealedVoiceError() // marker method
}

// KeyFormatError reports key text that cannot be used for its purpose.
type KeyFormatError struct {
	Err error
}

func (e *KeyFormatError) Error() string { return fmt.Sprintf("key format: %v", e.Err) }

// Unwrap returns the underlying error.
func (e *KeyFormatError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *KeyFormatError) Is(target error) bool { return target == ErrKeyFormat }

// SealedVoiceError implements the SealedVoiceError interface.
func (e *KeyFormatError) SealedVoiceError() {}

// PacketFormatError reports a packet with a missing or malformed field.
type PacketFormatError struct {
	Err error
}

func (e *PacketFormatError) Error() string { return fmt.Sprintf("packet format: %v", e.Err) }

// Unwrap returns the underlying error.
func (e *PacketFormatError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *PacketFormatError) Is(target error) bool { return target == ErrPacketFormat }

// SealedVoiceError implements the SealedVoiceError interface.
func (e *PacketFormatError) SealedVoiceError() {}

// IntegrityError indicates the packet was modified in transit.
type IntegrityError struct {
	Err error
}

func (e *IntegrityError) Error() string { return fmt.Sprintf("integrity: %v", e.Err) }

// Unwrap returns the underlying error.
func (e *IntegrityError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// SealedVoiceError implements the SealedVoiceError interface.
func (e *IntegrityError) SealedVoiceError() {}

// AuthenticationError indicates the packet was not signed by the claimed
// sender.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string { return fmt.Sprintf("authentication: %v", e.Err) }

// Unwrap returns the underlying error.
func (e *AuthenticationError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// SealedVoiceError implements the SealedVoiceError interface.
func (e *AuthenticationError) SealedVoiceError() {}

// KeyRecoveryError indicates the packet was not encrypted for this
// recipient, or its wrapped session key was altered.
type KeyRecoveryError struct {
	Err error
}

func (e *KeyRecoveryError) Error() string { return fmt.Sprintf("key recovery: %v", e.Err) }

// Unwrap returns the underlying error.
func (e *KeyRecoveryError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *KeyRecoveryError) Is(target error) bool { return target == ErrKeyRecovery }

// SealedVoiceError implements the SealedVoiceError interface.
func (e *KeyRecoveryError) SealedVoiceError() {}

// DecryptionError indicates the recovered session key does not open the
// payload.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string { return fmt.Sprintf("decryption: %v", e.Err) }

// Unwrap returns the underlying error.
func (e *DecryptionError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

// SealedVoiceError implements the SealedVoiceError interface.
func (e *DecryptionError) SealedVoiceError() {}

// DirectoryLookupError indicates a username has no directory entry.
type DirectoryLookupError struct {
	Username string
	Err      error
}

func (e *DirectoryLookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lookup %q: %v", e.Username, e.Err)
	}
	return fmt.Sprintf("lookup %q: %v", e.Username, ErrUserNotFound)
}

// Unwrap returns the underlying error.
func (e *DirectoryLookupError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *DirectoryLookupError) Is(target error) bool { return target == ErrUserNotFound }

// SealedVoiceError implements the SealedVoiceError interface.
func (e *DirectoryLookupError) SealedVoiceError() {}

// APIError represents an HTTP error from the relay.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string // if returned by server
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		if e.Message != "" {
			return fmt.Sprintf("API error %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
		}
		return fmt.Sprintf("API error %d (request_id: %s)", e.StatusCode, e.RequestID)
	}
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// SealedVoiceError implements the SealedVoiceError interface.
func (e *APIError) SealedVoiceError() {}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case 400:
		return target == ErrBadRequest
	case 404:
		return target == ErrUserNotFound
	case 413:
		return target == ErrPayloadTooLarge
	case 429:
		return target == ErrRateLimited
	}
	return false
}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// SealedVoiceError implements the SealedVoiceError interface.
func (e *NetworkError) SealedVoiceError() {}

// wrapError converts internal API errors to public errors.
// This ensures that errors.Is() checks work with public sentinel errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			RequestID:  apiErr.RequestID,
		}
	}

	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return &NetworkError{
			Err:     netErr.Err,
			URL:     netErr.URL,
			Attempt: netErr.Attempt,
		}
	}

	return err
}

// wrapCryptoError converts internal crypto sentinels to the public typed
// errors. Context errors pass through unchanged.
func wrapCryptoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, crypto.ErrKeyFormat):
		return &KeyFormatError{Err: err}
	case errors.Is(err, crypto.ErrPacketFormat):
		return &PacketFormatError{Err: err}
	case errors.Is(err, crypto.ErrIntegrity):
		return &IntegrityError{Err: err}
	case errors.Is(err, crypto.ErrAuthentication):
		return &AuthenticationError{Err: err}
	case errors.Is(err, crypto.ErrKeyRecovery):
		return &KeyRecoveryError{Err: err}
	case errors.Is(err, crypto.ErrDecryption):
		return &DecryptionError{Err: err}
	}
	return err
}
