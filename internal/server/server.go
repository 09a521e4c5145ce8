package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apisetup "waitlist-server/internal/api"
	"waitlist-server/internal/bootstrap"
	"waitlist-server/internal/config"
	"waitlist-server/internal/observability"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	httpServer *http.Server
	serveErr   chan error
	router     *gin.Engine
	deps       *bootstrap.Dependencies
	config     *config.Config
	logger     *observability.Logger
}

// New creates a new Server instance
func New(cfg *config.Config, deps *bootstrap.Dependencies, logger *observability.Logger) *Server {
	return &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
	}
}

// Setup configures the HTTP router with middleware and routes
func (s *Server) Setup() {
	if s.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	// Forwarded headers are honoured only from the configured proxies.
	if err := s.router.SetTrustedProxies(s.config.Server.TrustedProxies); err != nil {
		s.logger.Error(context.Background(), "invalid trusted proxies, ignoring forwarded headers", err)
		_ = s.router.SetTrustedProxies(nil)
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", observability.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{
		observability.RequestIDHeader,
		"X-RateLimit-Limit",
		"X-RateLimit-Remaining",
		"X-RateLimit-Reset",
		"Retry-After",
	}
	if len(s.config.Server.AllowedOrigins) == 0 || containsWildcard(s.config.Server.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.config.Server.AllowedOrigins
	}

	s.router.Use(observability.Middleware(s.logger))
	s.router.Use(cors.New(corsConfig))

	api := apisetup.New(s.router, s.deps.WaitlistHandler, s.deps.IPThrottle)
	api.RegisterRoutes()
}

// Handler returns the configured router. Setup must be called first.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.serve(ctx, ln)
	return nil
}

func (s *Server) serve(ctx context.Context, ln net.Listener) {
	s.deps.IPThrottle.StartJanitor(ctx)

	// Run the server in a goroutine so that it doesn't block
	s.serveErr = make(chan error, 1)
	go func() {
		s.logger.Info(ctx, fmt.Sprintf("Server starting on port %d", s.config.Server.Port))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "server stopped unexpectedly", err)
			s.serveErr <- err
		}
	}()
}

// WaitForShutdown blocks until a shutdown signal is received, ctx is done
// or the server stops on its own, then gracefully shuts down. A serve
// failure is returned.
func (s *Server) WaitForShutdown(ctx context.Context) error {
	// Set up a channel to listen for OS signals for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	case err := <-s.serveErr:
		s.deps.Cleanup()
		return fmt.Errorf("server stopped: %w", err)
	}
	s.logger.Info(ctx, "Shutting down server...")

	// In-flight requests get ShutdownTimeout to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.deps.Cleanup()

	s.logger.Info(ctx, "Server exited gracefully")
	return nil
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
