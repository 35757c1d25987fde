package sealedvoice

import (
	"log/slog"
	"net/http"
	"time"
)

// DeliveryStrategy specifies how the client receives new messages.
type DeliveryStrategy string

const (
	// StrategyAuto tries WebSocket push first, falls back to polling.
	StrategyAuto DeliveryStrategy = "auto"
	// StrategyWebSocket uses the relay push channel.
	StrategyWebSocket DeliveryStrategy = "websocket"
	// StrategyPolling uses periodic /receive calls with exponential backoff.
	StrategyPolling DeliveryStrategy = "polling"
)

const (
	defaultBaseURL = "http://localhost:5001"
	defaultTimeout = 30 * time.Second
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL           string
	httpClient        *http.Client
	deliveryStrategy  DeliveryStrategy
	timeout           time.Duration
	retries           int
	retryOn           []int
	logger            *slog.Logger
	verifyConcurrency int

	// Delivery configuration
	pollingInitialInterval     time.Duration
	pollingMaxBackoff          time.Duration
	pollingBackoffMultiplier   float64
	pollingJitterFactor        float64
	webSocketConnectionTimeout time.Duration
	webSocketReconnectInterval time.Duration
}

// Option configures the client.
type Option func(*clientConfig)

// WithBaseURL sets the relay base URL.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithDeliveryStrategy sets the delivery strategy.
func WithDeliveryStrategy(strategy DeliveryStrategy) Option {
	return func(c *clientConfig) {
		c.deliveryStrategy = strategy
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries sets the number of retries for API calls.
func WithRetries(count int) Option {
	return func(c *clientConfig) {
		c.retries = count
	}
}

// WithRetryOn sets the HTTP status codes that trigger a retry.
// Default: [408, 429, 500, 502, 503, 504]
func WithRetryOn(statusCodes []int) Option {
	return func(c *clientConfig) {
		c.retryOn = statusCodes
	}
}

// WithLogger sets the logger for client diagnostics. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithVerifyConcurrency bounds how many packets Receive verifies at once.
// Default: 4
func WithVerifyConcurrency(n int) Option {
	return func(c *clientConfig) {
		c.verifyConcurrency = n
	}
}

// WithPollingInitialInterval sets the initial polling interval.
// This is the interval used when messages are actively being received.
// Default: 2 seconds
func WithPollingInitialInterval(interval time.Duration) Option {
	return func(c *clientConfig) {
		c.pollingInitialInterval = interval
	}
}

// WithPollingMaxBackoff sets the maximum polling backoff interval.
// Default: 30 seconds
func WithPollingMaxBackoff(maxBackoff time.Duration) Option {
	return func(c *clientConfig) {
		c.pollingMaxBackoff = maxBackoff
	}
}

// WithPollingBackoffMultiplier sets the backoff multiplier for polling.
// Default: 1.5
func WithPollingBackoffMultiplier(multiplier float64) Option {
	return func(c *clientConfig) {
		c.pollingBackoffMultiplier = multiplier
	}
}

// WithPollingJitterFactor sets the jitter factor for polling intervals.
// Default: 0.3 (30%)
func WithPollingJitterFactor(factor float64) Option {
	return func(c *clientConfig) {
		c.pollingJitterFactor = factor
	}
}

// WithWebSocketConnectionTimeout sets how long StrategyAuto waits for the
// push channel before falling back to polling.
// Default: 5 seconds
func WithWebSocketConnectionTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.webSocketConnectionTimeout = timeout
	}
}

// WithWebSocketReconnectInterval sets the base delay between push
// reconnects. Each failed attempt doubles it.
// Default: 1 second
func WithWebSocketReconnectInterval(interval time.Duration) Option {
	return func(c *clientConfig) {
		c.webSocketReconnectInterval = interval
	}
}
