// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds the configuration of the sealedvoice binaries.
type Config struct {
	// RelayURL is the base URL clients use to reach the relay.
	RelayURL string
	// Delivery selects how clients receive messages: "auto", "websocket" or "polling".
	Delivery string
	// Timeout bounds each relay HTTP request.
	Timeout time.Duration

	// ServerHost is the host address the relay will bind to.
	ServerHost string
	// ServerPort is the port number the relay will listen on.
	ServerPort int

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string
	// LogFingerprintUsernames replaces usernames in logs with keyed fingerprints.
	LogFingerprintUsernames bool

	// CORSAllowOrigins is a comma-separated list of allowed origins; "*" allows any.
	CORSAllowOrigins string

	// RateLimitEnabled indicates whether per-IP rate limiting is enabled.
	RateLimitEnabled bool
	// RateLimitRequestsPerSec is the number of requests allowed per second per IP.
	RateLimitRequestsPerSec float64
	// RateLimitBurst is the burst size for rate limiting.
	RateLimitBurst int

	// MetricsEnabled indicates whether the relay exposes /metrics.
	MetricsEnabled bool
	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string

	// MaxPacketBytes caps relay request bodies.
	MaxPacketBytes int64
}

// Load loads configuration from environment variables, after reading the
// nearest .env file if one exists.
func Load() *Config {
	loadDotEnv()

	return &Config{
		RelayURL: env.GetString("SEALEDVOICE_URL", "http://localhost:5001"),
		Delivery: env.GetString("SEALEDVOICE_DELIVERY", "auto"),
		Timeout:  env.GetDuration("SEALEDVOICE_TIMEOUT_SECONDS", 30, time.Second),

		ServerHost: env.GetString("SERVER_HOST", "0.0.0.0"),
		ServerPort: env.GetInt("SERVER_PORT", 5001),

		LogLevel:                env.GetString("LOG_LEVEL", "info"),
		LogFingerprintUsernames: env.GetBool("LOG_FINGERPRINT_USERNAMES", false),

		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", "*"),

		RateLimitEnabled:        env.GetBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequestsPerSec: env.GetFloat64("RATE_LIMIT_REQUESTS_PER_SEC", 10.0),
		RateLimitBurst:          env.GetInt("RATE_LIMIT_BURST", 20),

		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "sealedvoice"),

		MaxPacketBytes: int64(env.GetInt("MAX_PACKET_BYTES", 16<<20)),
	}
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	if c.LogLevel == "debug" {
		return "debug"
	}
	return "release"
}

// loadDotEnv searches for a .env file from the current directory up to the
// root directory and loads the first one found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
