package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sealedvoice/client-go/internal/config"
	"github.com/sealedvoice/client-go/internal/relay"
)

const shutdownTimeout = 10 * time.Second

// RelayConfig maps the process configuration onto relay settings.
func RelayConfig(cfg *config.Config) relay.Config {
	return relay.Config{
		Host:                    cfg.ServerHost,
		Port:                    cfg.ServerPort,
		CORSAllowOrigins:        cfg.CORSAllowOrigins,
		RateLimitEnabled:        cfg.RateLimitEnabled,
		RateLimitRequestsPerSec: cfg.RateLimitRequestsPerSec,
		RateLimitBurst:          cfg.RateLimitBurst,
		MetricsEnabled:          cfg.MetricsEnabled,
		MetricsNamespace:        cfg.MetricsNamespace,
		MaxPacketBytes:          cfg.MaxPacketBytes,
	}
}

// RunRelay starts the in-memory relay with graceful shutdown support.
// Blocks until receiving SIGINT/SIGTERM or encountering a fatal error.
func RunRelay(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	gin.SetMode(cfg.GetGinMode())

	server := relay.NewServer(RelayConfig(cfg), logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("relay server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("failed to shutdown relay: %w", err)
		}
		logger.Info("relay stopped gracefully")
		return nil

	case err := <-serverErr:
		return err
	}
}
