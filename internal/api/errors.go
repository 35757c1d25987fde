package api

import (
	"errors"
	"fmt"
)

// Common relay errors that can be checked with errors.Is.
var (
	// ErrUserNotFound indicates the sender or recipient is not registered.
	ErrUserNotFound = errors.New("user not found")
	// ErrBadRequest indicates a required field was missing or malformed.
	ErrBadRequest = errors.New("bad request")
	// ErrPayloadTooLarge indicates the packet exceeded the relay size limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrRateLimited indicates the rate limit has been exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// APIError represents an HTTP error returned by the relay.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
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

// SealedVoiceError implements the SealedVoiceError marker interface.
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

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// SealedVoiceError implements the SealedVoiceError marker interface.
func (e *NetworkError) SealedVoiceError() {}
