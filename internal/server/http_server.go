// Package server constructs and starts the relay's HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified address and handler.
// It sets reasonable timeout values for production use.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartHub runs the hub loop in a separate goroutine.
// This should be called before starting the HTTP server.
func StartHub(hub *Hub) {
	go hub.Run()
	hub.log.Info("hub started and ready to manage websocket connections")
}

// StartServer starts the HTTP server and blocks until it exits.
func StartServer(server *http.Server, logger *slog.Logger) error {
	logger.Info("relay listening", "addr", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	logger.Info("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "err", err)
		return err
	}

	logger.Info("http server shutdown completed")
	return nil
}
