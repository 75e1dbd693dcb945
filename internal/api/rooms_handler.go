package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/khunphaen/syncserver/internal/domain"
	"github.com/khunphaen/syncserver/internal/room"
)

// RoomsHandler serves the room creation and lookup control plane.
type RoomsHandler struct {
	registry  *room.Registry
	publicURL string // e.g. "wss://example.com/ws"; empty means relative "/ws"
}

func NewRoomsHandler(registry *room.Registry, publicURL string) *RoomsHandler {
	return &RoomsHandler{registry: registry, publicURL: publicURL}
}

type createRoomRequest struct {
	DesiredRoomCode string `json:"desired_room_code"`
	DesiredHostID   string `json:"desired_host_id"`
}

// Create handles POST /api/rooms. The body is optional; an absent or empty
// body creates a room with a generated code and host ID.
func (h *RoomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	req.DesiredRoomCode = strings.ToUpper(strings.TrimSpace(req.DesiredRoomCode))

	rm, created := h.registry.Create(req.DesiredRoomCode, req.DesiredHostID)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"room_code":     rm.Code,
		"room_id":       rm.ID,
		"host_id":       rm.HostID,
		"websocket_url": h.websocketURL(),
		"restored":      !created,
	})
}

func (h *RoomsHandler) websocketURL() string {
	if h.publicURL != "" {
		return h.publicURL
	}
	return "/ws"
}

// Get handles GET /api/rooms/{room_code}.
func (h *RoomsHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("room_code"))
	rm, ok := h.registry.Get(code)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrRoomNotFound.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"room_code":  rm.Code,
		"host_id":    rm.HostID,
		"peers":      rm.Peers(),
		"created_at": rm.CreatedAt,
		"peer_count": rm.PeerCount(),
	})
}
