// Package websocket implements the per-connection session state machine:
// message framing, the fan-out subscription, and the single writer loop
// that keeps writes to a gorilla/websocket connection serialized.
package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/khunphaen/syncserver/internal/room"
)

// ClientAction discriminates the inbound ClientMessage sum type.
type ClientAction string

const (
	ActionJoin          ClientAction = "join"
	ActionLeave         ClientAction = "leave"
	ActionBroadcast     ClientAction = "broadcast"
	ActionSyncDocument  ClientAction = "sync_document"
	ActionRequestSync   ClientAction = "request_sync"
	ActionPing          ClientAction = "ping"
)

// ClientMessage is a single inbound frame. Fields irrelevant to Action are
// left zero; which fields apply is determined entirely by Action.
type ClientMessage struct {
	Action       ClientAction
	RoomCode     string
	PeerID       string
	IsHost       bool
	Metadata     json.RawMessage
	Data         string
	Document     string
}

type clientMessageWire struct {
	Action       ClientAction    `json:"action"`
	RoomCode     string          `json:"room_code,omitempty"`
	PeerID       string          `json:"peer_id,omitempty"`
	IsHost       bool            `json:"is_host,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	Data         string          `json:"data,omitempty"`
	Document     string          `json:"document,omitempty"`
}

func (m *ClientMessage) UnmarshalJSON(data []byte) error {
	var wire clientMessageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Action {
	case ActionJoin, ActionLeave, ActionBroadcast, ActionSyncDocument, ActionRequestSync, ActionPing:
	default:
		return fmt.Errorf("websocket: unknown action %q", wire.Action)
	}
	m.Action = wire.Action
	m.RoomCode = wire.RoomCode
	m.PeerID = wire.PeerID
	m.IsHost = wire.IsHost
	m.Metadata = wire.Metadata
	m.Data = wire.Data
	m.Document = wire.Document
	return nil
}

// ServerMessageType discriminates the outbound ServerMessage sum type.
type ServerMessageType string

const (
	TypeConnected    ServerMessageType = "connected"
	TypePeerJoined   ServerMessageType = "peer_joined"
	TypePeerLeft     ServerMessageType = "peer_left"
	TypeData         ServerMessageType = "data"
	TypeDocumentSync ServerMessageType = "document_sync"
	TypeError        ServerMessageType = "error"
	TypeRoomInfo     ServerMessageType = "room_info"
	TypePong         ServerMessageType = "pong"
)

// ServerMessage is a single outbound frame, built by the New*Message
// constructors below rather than assembled field-by-field at call sites.
type ServerMessage struct {
	Type      ServerMessageType
	Peer      *room.PeerInfo
	PeerID    string
	From      string
	Data      string
	Document  string
	Message   string
	Peers     []room.PeerInfo
	RoomCode  string
	HostID    string
	CreatedAt time.Time
	PeerCount int
}

type serverMessageWire struct {
	Type      ServerMessageType `json:"type"`
	Peer      *room.PeerInfo    `json:"peer,omitempty"`
	PeerID    string            `json:"peer_id,omitempty"`
	From      string            `json:"from,omitempty"`
	Data      string            `json:"data,omitempty"`
	Document  string            `json:"document,omitempty"`
	Message   string            `json:"message,omitempty"`
	Peers     []room.PeerInfo   `json:"peers,omitempty"`
	RoomCode  string            `json:"room_code,omitempty"`
	HostID    string            `json:"host_id,omitempty"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
	PeerCount int               `json:"peer_count,omitempty"`
}

func (m ServerMessage) MarshalJSON() ([]byte, error) {
	wire := serverMessageWire{
		Type:      m.Type,
		Peer:      m.Peer,
		PeerID:    m.PeerID,
		From:      m.From,
		Data:      m.Data,
		Document:  m.Document,
		Message:   m.Message,
		Peers:     m.Peers,
		RoomCode:  m.RoomCode,
		HostID:    m.HostID,
		PeerCount: m.PeerCount,
	}
	if !m.CreatedAt.IsZero() {
		wire.CreatedAt = &m.CreatedAt
	}
	return json.Marshal(wire)
}

func newConnectedMessage(peerID string) ServerMessage {
	return ServerMessage{Type: TypeConnected, PeerID: peerID}
}

func newPeerJoinedMessage(peer room.PeerInfo) ServerMessage {
	return ServerMessage{Type: TypePeerJoined, Peer: &peer}
}

func newPeerLeftMessage(peerID string) ServerMessage {
	return ServerMessage{Type: TypePeerLeft, PeerID: peerID}
}

func newDataMessage(from, data string) ServerMessage {
	return ServerMessage{Type: TypeData, From: from, Data: data}
}

func newDocumentSyncMessage(document string) ServerMessage {
	return ServerMessage{Type: TypeDocumentSync, Document: document}
}

func newErrorMessage(message string) ServerMessage {
	return ServerMessage{Type: TypeError, Message: message}
}

func newRoomInfoMessage(r *room.Room) ServerMessage {
	return ServerMessage{
		Type:      TypeRoomInfo,
		RoomCode:  r.Code,
		HostID:    r.HostID,
		Peers:     r.Peers(),
		CreatedAt: r.CreatedAt,
		PeerCount: r.PeerCount(),
	}
}

func newPongMessage() ServerMessage {
	return ServerMessage{Type: TypePong}
}
