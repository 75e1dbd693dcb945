package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/khunphaen/syncserver/internal/api"
	"github.com/khunphaen/syncserver/internal/config"
	"github.com/khunphaen/syncserver/internal/middleware"
	"github.com/khunphaen/syncserver/internal/pubsub"
	"github.com/khunphaen/syncserver/internal/room"
	"github.com/khunphaen/syncserver/internal/server"
	"github.com/khunphaen/syncserver/internal/websocket"
)

// roomCreateRate and roomCreateBurst implement the source-level token
// bucket from the control plane spec: 2 tokens/second, burst 5.
const (
	roomCreateRate  = 2.0
	roomCreateBurst = 5
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	bus, err := newPubSub(cfg)
	if err != nil {
		slog.Error("failed to initialize pub/sub", "error", err)
		os.Exit(1)
	}
	defer bus.Close()
	slog.Info("pub/sub initialized", "type", cfg.PubSubType)

	registry := room.NewRegistry(bus, logger)

	reaper := room.NewReaper(registry, cfg.RoomIdleTimeout, logger)
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go reaper.Run(reaperCtx)
	if cfg.ReapingDisabled() {
		slog.Info("idle reaping disabled", "reason", "ROOM_IDLE_TIMEOUT_SECONDS=0")
	}

	rateLimiter := middleware.NewRateLimiter(roomCreateRate, roomCreateBurst)
	cleanupTicker := time.NewTicker(10 * time.Minute)
	defer cleanupTicker.Stop()
	go func() {
		for range cleanupTicker.C {
			rateLimiter.Cleanup()
		}
	}()

	shutdownSignal := make(chan struct{})
	wsHandler := websocket.NewHandler(registry, shutdownSignal, logger)
	roomsHandler := api.NewRoomsHandler(registry, os.Getenv("PUBLIC_WEBSOCKET_URL"))

	deps := &server.Dependencies{
		Registry:     registry,
		RoomsHandler: roomsHandler,
		RateLimiter:  rateLimiter,
		WSHandler:    wsHandler,
		Logger:       logger,
	}

	srv := server.New(cfg, deps)

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdownCtx.Done()
	slog.Info("shutting down gracefully...")
	close(shutdownSignal)

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeoutCancel()

	if err := srv.Shutdown(timeoutCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func newPubSub(cfg *config.Config) (pubsub.PubSub, error) {
	if cfg.PubSubType == "redis" {
		return pubsub.NewRedisPubSub(cfg.RedisURL)
	}
	return pubsub.NewMemoryPubSub(), nil
}
