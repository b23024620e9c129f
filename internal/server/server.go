// Package server constructs the preview server and manages its lifecycle:
// binding and releasing the port, publishing the listening state and tearing
// down WebSocket sessions on stop.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
)

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the logger used by the server and its sessions.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithResolver sets the resolver used for LAN URLs.
func WithResolver(resolver AddressResolver) Option {
	return func(s *Server) {
		s.resolver = resolver
	}
}

// Server serves a RouteTable on a fixed port. Start and Stop may be called
// repeatedly; Start while listening fails with ErrAlreadyListening.
type Server struct {
	cfg      Config
	logger   *log.Logger
	resolver AddressResolver

	routes    *RouteTable
	sessions  *SessionRegistry
	urls      *URLBuilder
	listening *StateSignal

	mu         sync.Mutex
	httpServer *http.Server
	serveDone  chan struct{}
}

// New validates cfg and returns a stopped Server.
func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{cfg: cfg.sanitize()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default().WithPrefix("preview")
	}

	s.sessions = NewSessionRegistry(s.logger)
	s.routes = NewRouteTable(s.cfg, s.sessions, s.logger)
	s.urls = NewURLBuilder(s.resolver, s.cfg.InterfaceName)
	s.listening = NewStateSignal()
	return s, nil
}

// Port returns the configured port.
func (s *Server) Port() uint16 {
	return s.cfg.Port
}

// Routes returns the route table served by s.
func (s *Server) Routes() *RouteTable {
	return s.routes
}

// Sessions returns the registry tracking the current WebSocket session.
func (s *Server) Sessions() *SessionRegistry {
	return s.sessions
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	if s.listening.Value() {
		return Listening
	}
	return Stopped
}

// Listening returns the signal publishing the listening flag.
func (s *Server) Listening() *StateSignal {
	return s.listening
}

// Start binds the port and serves in the background. A bind failure leaves the
// server stopped and is returned as a *BindError.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return ErrAlreadyListening
	}

	network := "tcp"
	if s.cfg.ForceIPv4 {
		network = "tcp4"
	}
	ln, err := net.Listen(network, ":"+strconv.Itoa(int(s.cfg.Port)))
	if err != nil {
		bindErr := &BindError{Port: s.cfg.Port, Err: err}
		s.logger.Error("server start failed", "port", s.cfg.Port, "err", err)
		return bindErr
	}

	srv := createHTTPServer(s.cfg, s.routes)
	done := make(chan struct{})
	s.httpServer = srv
	s.serveDone = done
	s.sessions.reopen()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped unexpectedly", "port", s.cfg.Port, "err", err)
			go s.handleServeFailure(srv)
		}
	}()

	s.logger.Info("server listening", "port", s.cfg.Port, "network", network)
	s.listening.publish(true)
	return nil
}

func createHTTPServer(cfg Config, handler http.Handler) *http.Server {
	return &http.Server{
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// handleServeFailure tears down after Serve returned on its own.
func (s *Server) handleServeFailure(srv *http.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != srv {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	_ = s.teardown(ctx)
}

// Stop closes any open sessions, then the listener, and waits for both within
// the configured shutdown timeout. Stopping a stopped server is a no-op.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown is Stop bounded by ctx instead of the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("stopping server", "port", s.cfg.Port)
	return s.teardown(ctx)
}

// teardown must be called with s.mu held.
func (s *Server) teardown(ctx context.Context) error {
	srv, done := s.httpServer, s.serveDone
	var errs []error

	if n := s.sessions.closeAll(); n > 0 {
		s.logger.Info("closed websocket sessions", "count", n)
	}

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown incomplete; forcing close", "err", err)
		errs = append(errs, err)
		_ = srv.Close()
	}
	<-done

	if err := s.sessions.wait(ctx); err != nil {
		s.logger.Warn("sessions still running after shutdown", "err", err)
		errs = append(errs, err)
	}

	s.httpServer = nil
	s.serveDone = nil
	s.listening.publish(false)
	s.logger.Info("server stopped", "port", s.cfg.Port)
	return errors.Join(errs...)
}

// Run starts the server, blocks until ctx is done and stops it.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// URL returns scheme://host:port for mode.
func (s *Server) URL(scheme string, mode Mode) (string, error) {
	return s.urls.Build(scheme, mode, s.cfg.Port)
}

// HTTPURL returns the http URL for mode.
func (s *Server) HTTPURL(mode Mode) (string, error) {
	return s.URL("http", mode)
}

// WebSocketURL returns the ws URL for mode, including the current upgrade path.
func (s *Server) WebSocketURL(mode Mode) (string, error) {
	return s.urls.BuildPath("ws", mode, s.cfg.Port, s.routes.WebSocketPath())
}

// SetRoute registers h for path, replacing any previous handler.
func (s *Server) SetRoute(path string, h RouteHandler) {
	s.routes.SetRoute(path, h)
}

// SetWebSocketRoute makes path the WebSocket upgrade route.
func (s *Server) SetWebSocketRoute(path string, cb WebSocketCallbacks) {
	s.routes.SetWebSocketRoute(path, cb)
}

// CurrentSession returns the tracked WebSocket session or nil.
func (s *Server) CurrentSession() *Session {
	return s.sessions.Current()
}

// SendText writes text to the current session; without one it does nothing.
func (s *Server) SendText(text string) error {
	return s.sessions.SendText(text)
}

// SendBinary writes data to the current session; without one it does nothing.
func (s *Server) SendBinary(data []byte) error {
	return s.sessions.SendBinary(data)
}
