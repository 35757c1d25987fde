// Package api provides HTTP client functionality for communicating with a
// sealedvoice relay. It handles request/response serialization and automatic
// retry logic with exponential backoff for transient failures.
//
// # Client Creation
//
// The package provides two ways to create a client:
//
//   - [NewClient]: Struct-based configuration for explicit, type-safe setup.
//   - [New]: Functional options pattern for flexible configuration.
//
// Both require a base URL. The relay carries no authentication: packets are
// end-to-end encrypted and signed, so the relay only stores and forwards.
//
// # Retry Behavior
//
// By default, requests are retried up to 3 times for these HTTP status codes:
//
//   - 408 Request Timeout
//   - 429 Too Many Requests
//   - 500 Internal Server Error
//   - 502 Bad Gateway
//   - 503 Service Unavailable
//   - 504 Gateway Timeout
//
// The retry delay doubles with each attempt (1s, 2s, 4s, ...) with jitter.
//
// # Error Handling
//
//   - [ErrBadRequest]: A required field is missing (400).
//   - [ErrUserNotFound]: Sender or recipient is not registered (404).
//   - [ErrPayloadTooLarge]: Packet exceeds the relay limit (413).
//   - [ErrRateLimited]: Rate limit exceeded (429).
//
// Use errors.Is to check for specific error types:
//
//	if errors.Is(err, api.ErrUserNotFound) {
//	    // Handle unknown user
//	}
//
// # Thread Safety
//
// The [Client] type is safe for concurrent use.
package api
