// ABOUTME: HTTP host for the adapter: wires routes, middleware and graceful shutdown
// ABOUTME: Serves the messaging endpoint, proactive notify, health and Prometheus metrics

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/2389/coven-adapter/internal/adapter"
	"github.com/2389/coven-adapter/internal/config"
	"github.com/2389/coven-adapter/internal/references"
	"github.com/2389/coven-adapter/internal/transcript"
	"github.com/2389/coven-adapter/internal/turn"
)

// Options supplies the bot behavior the server hosts.
type Options struct {
	// Bot runs for every inbound activity.
	Bot turn.Handler

	// References backs /api/notify. Nil disables the endpoint.
	References *references.Registry

	// Notify builds the handler run in each resumed conversation. Nil
	// disables the endpoint.
	Notify func(text string) turn.Handler

	// Transcripts backs /api/transcript. Nil disables the endpoint.
	Transcripts *transcript.Broadcaster
}

// Server hosts one adapter over HTTP.
type Server struct {
	config     *config.Config
	adapter    *adapter.Adapter
	opts       Options
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds the server and its router. Pass nil logger for default.
func New(cfg *config.Config, ad *adapter.Adapter, opts Options, logger *slog.Logger) (*Server, error) {
	if opts.Bot == nil {
		return nil, errors.New("server: bot handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		adapter: ad,
		opts:    opts,
		logger:  logger.With("component", "server"),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: config.DefaultReadHeaderTimeout,
	}
	if opts.Transcripts != nil {
		// Ends open transcript streams so Shutdown does not wait on them.
		s.httpServer.RegisterOnShutdown(opts.Transcripts.Close)
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens on the configured address and blocks until ctx is canceled or
// the server fails. Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening",
			"addr", ln.Addr().String(),
			"app_id", s.adapter.Credentials().AppID(),
			"auth_disabled", s.adapter.Credentials().IsAuthenticationDisabled(),
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the caller's is already done.
func (s *Server) gracefulShutdown() error {
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops accepting requests and waits for in-flight turns.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
