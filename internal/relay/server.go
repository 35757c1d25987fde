package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DefaultMaxPacketBytes bounds request bodies when Config leaves it unset.
const DefaultMaxPacketBytes = 16 << 20

// Config holds relay server settings.
type Config struct {
	Host string
	Port int

	// CORSAllowOrigins is a comma-separated origin list; "*" allows any.
	// Empty disables CORS.
	CORSAllowOrigins string

	RateLimitEnabled        bool
	RateLimitRequestsPerSec float64
	RateLimitBurst          int

	MetricsEnabled   bool
	MetricsNamespace string

	// MaxPacketBytes caps the size of any request body.
	MaxPacketBytes int64
}

// Server is the relay HTTP server.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	store   *Store
	hub     *Hub
	metrics *Metrics
	limiter *rateLimiterStore
	server  *http.Server
}

// NewServer creates a relay with an empty store. A nil logger discards.
func NewServer(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MaxPacketBytes <= 0 {
		cfg.MaxPacketBytes = DefaultMaxPacketBytes
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		store:  NewStore(),
	}
	if cfg.MetricsEnabled {
		s.metrics = NewMetrics(cfg.MetricsNamespace)
	}
	if cfg.RateLimitEnabled {
		s.limiter = newRateLimiterStore(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst)
	}
	s.hub = NewHub(logger, s.metrics)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.setupRouter(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(loggerMiddleware(s.logger))
	if mw := corsMiddleware(s.cfg.CORSAllowOrigins, s.logger); mw != nil {
		router.Use(mw)
	}
	if s.metrics != nil {
		router.Use(s.metrics.Middleware())
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	router.GET("/health", s.healthHandler)

	routes := router.Group("")
	if s.limiter != nil {
		routes.Use(s.limiter.middleware(s.logger))
	}
	routes.Use(bodyLimitMiddleware(s.cfg.MaxPacketBytes))
	{
		routes.POST("/register", s.registerHandler)
		routes.POST("/send", s.sendHandler)
		routes.GET("/receive/:username", s.receiveHandler)
		routes.GET("/get_users", s.listUsersHandler)
		routes.GET("/users/:username", s.getUserHandler)
		routes.GET("/ws", s.webSocketHandler)
	}
	return router
}

// Handler returns the relay router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.limiter != nil {
		go s.limiter.cleanupStale(ctx, 5*time.Minute, time.Hour)
	}

	s.logger.Info("starting relay server", slog.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown closes push connections and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down relay server")
	s.hub.Close()
	return s.server.Shutdown(ctx)
}
