package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/roomrelay/internal/server"
)

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		slog.Error("load options", "err", err)
		os.Exit(1)
	}
	logger := server.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("relay stopped", "err", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or the listener fails, then shuts the
// HTTP server and the hub down. Only a listener failure is returned.
func run(ctx context.Context, cfg server.Config, logger *slog.Logger) error {
	hub := server.NewHub(cfg, logger, server.NewMetrics())
	server.StartHub(hub)

	httpServer := server.CreateServer(cfg.Addr(), server.SetupRoutes(cfg, hub))

	errc := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("serve http: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}

	_ = server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger)
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("hub shutdown", "err", err)
	}
	return serveErr
}
