package room

import (
	"encoding/json"
	"time"
)

// PeerInfo is a connected participant of a room, identified by a
// client-chosen peer_id. IsHost is declared by the client and is never
// checked against the room's host_id.
type PeerInfo struct {
	ID       string          `json:"id"`
	JoinedAt time.Time       `json:"joined_at"`
	IsHost   bool            `json:"is_host"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}
