package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Start serves the control API until ctx is canceled, then shuts down
// gracefully. Operations started by triggers are canceled with ctx.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx

	httpServer := s.setupHTTPServer()
	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", httpServer.Addr, err)
	}

	s.displayServerInfo(listener.Addr().String())

	return s.startWithGracefulShutdown(ctx, httpServer, listener)
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer() *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort(s.Host, s.Port),
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// startWithGracefulShutdown serves on listener and handles graceful shutdown
func (s *Server) startWithGracefulShutdown(ctx context.Context, server *http.Server, listener net.Listener) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server", "address", listener.Addr().String())

		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(server)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.Session != nil {
		analysis := s.Session.CancelAnalysis()
		report := s.Session.CancelReport()
		if analysis || report {
			s.Logger.Info("Canceled in-flight operations",
				"analysis", analysis,
				"report", report)
		}
	}

	s.cleanupRateLimiter()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
