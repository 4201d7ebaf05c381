package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/dispatch"
	"mercator-hq/conduit/pkg/maintenance"
	"mercator-hq/conduit/pkg/telemetry/health"
	"mercator-hq/conduit/pkg/telemetry/tracing"
)

// DefaultMaxImportBytes is the default cap on a cache import body.
const DefaultMaxImportBytes int64 = 32 << 20

// Server is the admin HTTP server exposing dispatch introspection.
type Server struct {
	config      config.AdminConfig
	metricsPath string
	version     string

	maxImportBytes int64

	dispatcher *dispatch.Dispatcher
	checker    *health.Checker
	scheduler  *maintenance.Scheduler

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	isRunning  bool
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithScheduler exposes the maintenance scheduler under /maintenance.
func WithScheduler(s *maintenance.Scheduler) Option {
	return func(srv *Server) { srv.scheduler = s }
}

// WithVersion sets the version reported by /version.
func WithVersion(v string) Option {
	return func(srv *Server) { srv.version = v }
}

// WithMetricsPath mounts the Prometheus handler at path instead of /metrics.
func WithMetricsPath(path string) Option {
	return func(srv *Server) {
		if path != "" {
			srv.metricsPath = path
		}
	}
}

// WithMaxImportBytes caps the body accepted by POST /cache/import.
func WithMaxImportBytes(n int64) Option {
	return func(srv *Server) {
		if n > 0 {
			srv.maxImportBytes = n
		}
	}
}

// NewServer creates an admin server for d. checker may be nil, in which
// case /readyz always reports ready.
func NewServer(cfg config.AdminConfig, d *dispatch.Dispatcher, checker *health.Checker, opts ...Option) *Server {
	s := &Server{
		config:      cfg,
		metricsPath: "/metrics",
		version:     "dev",
		dispatcher:  d,
		checker:     checker,
		logger:      slog.Default().With("component", "admin"),

		maxImportBytes: DefaultMaxImportBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("admin server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.isRunning = true
	srv := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting admin server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("admin server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown gracefully stops the server within ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	srv := s.httpServer
	s.mu.Unlock()

	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("error during admin server shutdown", "error", err)
		return fmt.Errorf("admin server shutdown error: %w", err)
	}

	s.logger.Info("admin server stopped")
	return nil
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the admin router with its middleware chain.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	s.registerRoutes(router)

	router.Use(recoveryMiddleware, requestIDMiddleware, loggingMiddleware, tracing.HTTPMiddleware)
	return router
}
