package websocket

import (
	"log/slog"
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"github.com/khunphaen/syncserver/internal/metrics"
	"github.com/khunphaen/syncserver/internal/room"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Rooms are joined by a shareable code, not a same-origin cookie; there
	// is nothing an origin check would protect here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades /ws requests and runs one ConnectionSession per
// connection until it exits.
type Handler struct {
	registry *room.Registry
	shutdown <-chan struct{}
	logger   *slog.Logger
}

// NewHandler creates a WebSocket upgrade handler bound to registry.
// shutdown is closed once on graceful server shutdown.
func NewHandler(registry *room.Registry, shutdown <-chan struct{}, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, shutdown: shutdown, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	session := NewSession(conn, h.registry, h.shutdown, h.logger)
	session.Run()
}
