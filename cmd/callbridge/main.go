package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ent0n29/callbridge/internal/app"
	"github.com/ent0n29/callbridge/internal/config"
	"github.com/ent0n29/callbridge/internal/observability"
	"github.com/ent0n29/callbridge/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	level, err := observability.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := observability.NewLogger(os.Stderr, level, cfg.LogFormat)
	slog.SetDefault(logger)

	built := app.Build(cfg, logger)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	built.Sessions.StartJanitor(runCtx, 30*time.Second)

	// Media-stream handlers hijack their connections, so Shutdown does not
	// wait for them; they end when runCtx is cancelled.
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           built.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return runCtx },
	}

	go func() {
		logger.Info("server listening", "addr", cfg.BindAddr, "media_path", cfg.TwilioMediaPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received", "active_sessions", built.Sessions.ActiveCount())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}
	runCancel()
	waitForCalls(shutdownCtx, built.Sessions, logger)

	logger.Info("shutdown complete")
}

// waitForCalls blocks until every bridged call has closed or ctx ends.
func waitForCalls(ctx context.Context, sessions *session.Manager, logger *slog.Logger) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for sessions.ActiveCount() > 0 {
		select {
		case <-ctx.Done():
			logger.Warn("calls still open at shutdown deadline", "active_sessions", sessions.ActiveCount())
			return
		case <-ticker.C:
		}
	}
}
