package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/khunphaen/syncserver/internal/domain"
	"github.com/khunphaen/syncserver/internal/metrics"
	"github.com/khunphaen/syncserver/internal/pubsub"
	"github.com/khunphaen/syncserver/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536

	// roomEventBuffer is a second, session-local lossy buffer between the
	// bus subscription's drain goroutine and this session's single writer
	// loop. It exists so a session blocked on a slow outbound write never
	// stalls the subscription's own drain goroutine.
	roomEventBuffer = 64
)

// ConnectionSession is one client connection: its inbound reader, its
// single outbound writer, and the room bus subscription it holds while
// joined. All writes to conn happen from Run's loop so concurrent writers
// never race on the same gorilla/websocket connection.
type ConnectionSession struct {
	conn     *gorilla.Conn
	registry *room.Registry
	shutdown <-chan struct{}
	logger   *slog.Logger

	inbound    chan *ClientMessage
	roomEvents chan room.Event
	stop       chan struct{}
	stopOnce   sync.Once

	currentRoom   *room.Room
	currentPeerID string
	roomSub       pubsub.Subscription
}

// NewSession constructs a session bound to an already-upgraded connection.
// shutdown is closed once, process-wide, on graceful shutdown.
func NewSession(conn *gorilla.Conn, registry *room.Registry, shutdown <-chan struct{}, logger *slog.Logger) *ConnectionSession {
	return &ConnectionSession{
		conn:       conn,
		registry:   registry,
		shutdown:   shutdown,
		logger:     logger,
		inbound:    make(chan *ClientMessage, 1),
		roomEvents: make(chan room.Event, roomEventBuffer),
		stop:       make(chan struct{}),
	}
}

// Run blocks until the session ends: a read error, a Leave action, or
// process shutdown. It always executes the leave path before returning.
func (s *ConnectionSession) Run() {
	defer s.leave()
	defer s.conn.Close()

	go s.readLoop()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.inbound:
			if !ok {
				return
			}
			s.handleClientMessage(msg)
		case ev := <-s.roomEvents:
			s.handleRoomEvent(ev)
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(gorilla.PingMessage, nil); err != nil {
				return
			}
		case <-s.shutdown:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseGoingAway, "shutting down"))
			return
		case <-s.stop:
			return
		}
	}
}

// readLoop is the only goroutine that calls conn.ReadMessage. Parsed
// frames are handed to Run's loop over inbound; the channel is closed on
// any read failure, which unblocks Run.
func (s *ConnectionSession) readLoop() {
	defer close(s.inbound)

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if gorilla.IsUnexpectedCloseError(err, gorilla.CloseGoingAway, gorilla.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// A nil message tells Run's loop to report the malformed frame,
			// so this goroutine never writes to conn itself.
			select {
			case s.inbound <- nil:
			case <-s.stop:
				return
			}
			continue
		}

		select {
		case s.inbound <- &msg:
		case <-s.stop:
			return
		}
	}
}

func (s *ConnectionSession) handleClientMessage(msg *ClientMessage) {
	if msg == nil {
		s.send(newErrorMessage("malformed message"))
		return
	}
	switch msg.Action {
	case ActionJoin:
		s.handleJoin(msg)
	case ActionLeave:
		s.leave()
		s.stopOnce.Do(func() { close(s.stop) })
	case ActionBroadcast:
		s.handleBroadcast(msg)
	case ActionSyncDocument:
		s.handleSyncDocument(msg)
	case ActionRequestSync:
		s.handleRequestSync()
	case ActionPing:
		s.handlePing()
	}
}

func (s *ConnectionSession) handleJoin(msg *ClientMessage) {
	if s.currentRoom != nil {
		s.recordOutcome("join", "rejected")
		s.send(newErrorMessage("already joined a room"))
		return
	}

	r, ok := s.registry.Get(msg.RoomCode)
	if !ok {
		s.recordOutcome("join", "room_not_found")
		s.send(newErrorMessage(domain.ErrRoomNotFound.Error()))
		return
	}

	sub, err := r.Subscribe(context.Background(), s.onRoomMessage)
	if err != nil {
		s.recordOutcome("join", "error")
		s.send(newErrorMessage("failed to join room"))
		return
	}

	peer := room.PeerInfo{ID: msg.PeerID, JoinedAt: time.Now(), IsHost: msg.IsHost, Metadata: msg.Metadata}
	if !r.AddPeer(peer) {
		_ = sub.Unsubscribe()
		s.recordOutcome("join", "rejected")
		s.send(newErrorMessage(domain.ErrRoomNotFound.Error()))
		return
	}

	s.currentRoom = r
	s.currentPeerID = peer.ID
	s.roomSub = sub

	r.Publish(context.Background(), room.Event{Kind: room.EventPeerJoined, Peer: peer, PeerID: peer.ID})

	s.send(newRoomInfoMessage(r))
	s.send(newConnectedMessage(peer.ID))
	if doc, ok := r.Document(); ok {
		s.send(newDocumentSyncMessage(doc))
	}
	s.recordOutcome("join", "ok")
}

func (s *ConnectionSession) handleBroadcast(msg *ClientMessage) {
	if s.currentRoom == nil {
		return
	}
	s.currentRoom.Publish(context.Background(), room.Event{Kind: room.EventDataSync, From: s.currentPeerID, Data: msg.Data})
	s.recordOutcome("broadcast", "ok")
}

func (s *ConnectionSession) handleSyncDocument(msg *ClientMessage) {
	if s.currentRoom == nil {
		return
	}
	s.currentRoom.SetDocument(msg.Document)
	s.currentRoom.Publish(context.Background(), room.Event{Kind: room.EventDocumentUpdate, From: s.currentPeerID, Document: msg.Document})
	s.recordOutcome("sync_document", "ok")
}

func (s *ConnectionSession) handleRequestSync() {
	if s.currentRoom == nil {
		return
	}
	doc, _ := s.currentRoom.Document()
	s.send(newDocumentSyncMessage(doc))
	s.recordOutcome("request_sync", "ok")
}

func (s *ConnectionSession) handlePing() {
	s.send(newPongMessage())
	s.recordOutcome("ping", "ok")
}

// onRoomMessage runs on the bus subscription's own drain goroutine. It
// decodes the event and stages it for Run's loop, dropping on overflow
// rather than blocking the drain goroutine.
func (s *ConnectionSession) onRoomMessage(_ context.Context, msg *pubsub.Message) {
	ev, err := room.DecodeEvent(msg.Payload)
	if err != nil {
		s.logger.Error("failed to decode room event", "error", err)
		return
	}
	select {
	case s.roomEvents <- ev:
	default:
		s.logger.Warn("session room-event buffer full, dropping event", "kind", ev.Kind)
	}
}

func (s *ConnectionSession) handleRoomEvent(ev room.Event) {
	switch ev.Kind {
	case room.EventPeerJoined:
		s.send(newPeerJoinedMessage(ev.Peer))
	case room.EventPeerLeft:
		s.send(newPeerLeftMessage(ev.PeerID))
	case room.EventDataSync:
		if ev.From == s.currentPeerID {
			return
		}
		s.send(newDataMessage(ev.From, ev.Data))
	case room.EventDocumentUpdate:
		if ev.From == s.currentPeerID {
			return
		}
		s.send(newDocumentSyncMessage(ev.Document))
	case room.EventHostChanged:
		// reserved, never emitted by the source.
	}
}

// leave is idempotent: a second call after currentRoom has already been
// cleared is a no-op.
func (s *ConnectionSession) leave() {
	if s.roomSub != nil {
		_ = s.roomSub.Unsubscribe()
		s.roomSub = nil
		// Unsubscribe stops future delivery but not whatever the drain
		// goroutine already queued; drop it so a rejoin never sees
		// cross-talk from the previous room.
	drain:
		for {
			select {
			case <-s.roomEvents:
			default:
				break drain
			}
		}
	}
	if s.currentRoom == nil {
		return
	}
	r := s.currentRoom
	peerID := s.currentPeerID
	s.currentRoom = nil
	s.currentPeerID = ""

	if r.RemovePeer(peerID) {
		r.Publish(context.Background(), room.Event{Kind: room.EventPeerLeft, PeerID: peerID})
	}
}

// send marshals and writes a frame. A write failure is treated as a
// transport error: it terminates the session via the leave path.
func (s *ConnectionSession) send(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to encode outbound message", "error", err)
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(gorilla.TextMessage, data); err != nil {
		if !errors.Is(err, gorilla.ErrCloseSent) {
			s.logger.Warn("websocket write error", "error", err)
		}
		s.stopOnce.Do(func() { close(s.stop) })
	}
}

func (s *ConnectionSession) recordOutcome(action, outcome string) {
	metrics.ClientMessagesTotal.WithLabelValues(action, outcome).Inc()
}
