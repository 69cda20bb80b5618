// Package chassis is the HTTP server shared by docxsvc services: a chi
// router with the standard middleware stack, /metrics, an optional MCP
// endpoint, and graceful shutdown.
package chassis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docxsvc/observability"
	"github.com/hazyhaar/docxsvc/shield"
)

// Service is a component that exposes HTTP routes and MCP tools.
type Service interface {
	RegisterHTTP(r chi.Router)
	RegisterMCP(srv *mcp.Server)
}

// Config configures a Server.
type Config struct {
	Addr              string
	Logger            *slog.Logger
	Metrics           *observability.Metrics // nil: no /metrics route
	MaxBodyBytes      int64
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// MCP names the MCP server mounted at /mcp. Nil disables the endpoint.
	MCP *mcp.Implementation
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Server hosts registered services.
type Server struct {
	cfg       Config
	logger    *slog.Logger
	router    *chi.Mux
	mcpServer *mcp.Server
	services  map[string]Service
	mu        sync.Mutex
}

// New builds the router and middleware stack. Routes are added with
// RegisterService.
func New(cfg Config) *Server {
	cfg.defaults()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.Middleware)
	for _, mw := range shield.DefaultStack(cfg.MaxBodyBytes) {
		r.Use(mw)
	}

	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		router:   r,
		services: make(map[string]Service),
	}

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	if cfg.MCP != nil {
		s.mcpServer = mcp.NewServer(cfg.MCP, nil)
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcpServer }, nil)
		r.Handle("/mcp", h)
	}
	return s
}

// RegisterService mounts the HTTP routes of svc and, when MCP is enabled,
// its tools.
func (s *Server) RegisterService(name string, svc Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.services[name]; exists {
		return fmt.Errorf("chassis: service %s already registered", name)
	}
	svc.RegisterHTTP(s.router)
	if s.mcpServer != nil {
		svc.RegisterMCP(s.mcpServer)
	}
	s.services[name] = svc
	s.logger.Info("chassis: service registered", "name", name, "mcp", s.mcpServer != nil)
	return nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("chassis: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// within ShutdownTimeout. It returns nil on a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("chassis: listening", "addr", ln.Addr().String(), "services", len(s.services))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("chassis: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("chassis: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("chassis: shutdown: %w", err)
	}
	s.logger.Info("chassis: stopped")
	return nil
}
