package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khunphaen/syncserver/internal/api"
	"github.com/khunphaen/syncserver/internal/config"
	"github.com/khunphaen/syncserver/internal/middleware"
	"github.com/khunphaen/syncserver/internal/room"
	"github.com/khunphaen/syncserver/internal/websocket"
)

// Dependencies holds everything registerRoutes needs to wire up handlers.
type Dependencies struct {
	Registry     *room.Registry
	RoomsHandler *api.RoomsHandler
	RateLimiter  *middleware.RateLimiter
	WSHandler    *websocket.Handler
	Logger       *slog.Logger
}

// New creates an HTTP server with all routes and ambient middleware wired.
func New(cfg *config.Config, deps *Dependencies) *http.Server {
	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	handler := chainMiddleware(mux,
		requestIDMiddleware,
		corsMiddleware(),
		loggingMiddleware(deps.Logger),
		recoverMiddleware(deps.Logger),
	)

	return &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("GET /", api.RootHandler)
	mux.Handle("GET /health", api.NewHealthHandler(deps.Registry))

	mux.Handle("POST /api/rooms", deps.RateLimiter.Middleware(http.HandlerFunc(deps.RoomsHandler.Create)))
	mux.HandleFunc("GET /api/rooms/{room_code}", deps.RoomsHandler.Get)

	mux.Handle("GET /ws", deps.WSHandler)

	mux.Handle("GET /metrics", promhttp.Handler())
}
