// Package room implements the multi-tenant fan-out hub: room lifecycle,
// membership, and the per-room broadcast bus that connection sessions
// subscribe to.
package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khunphaen/syncserver/internal/metrics"
	"github.com/khunphaen/syncserver/internal/pubsub"
)

// RoomCodeAlphabet excludes visually ambiguous glyphs (0/O, 1/I/L).
const RoomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// RoomCodeLength is the fixed length of a generated room code.
const RoomCodeLength = 6

// Room holds per-room state. ID, Code, HostID and CreatedAt are set once by
// New and never change. The mutable fields (documentState, lastSync,
// emptySince, closing) and the peer set are all guarded by mu: empty_since
// transitions must happen atomically with peer-set membership changes, so
// a single write guard covers both rather than two independently-locked
// pieces that could observe a torn invariant.
type Room struct {
	ID        string
	Code      string
	HostID    string
	CreatedAt time.Time

	mu            sync.RWMutex
	peers         map[string]PeerInfo
	documentState string
	hasDocument   bool
	lastSync      time.Time
	emptySince    *time.Time
	closing       bool

	bus    pubsub.PubSub
	topic  string
	logger *slog.Logger
}

// New creates a room in the empty state: empty_since is set to now since
// the room starts with no peers.
func New(code, hostID string, bus pubsub.PubSub, logger *slog.Logger) *Room {
	now := time.Now()
	return &Room{
		ID:         uuid.New().String(),
		Code:       code,
		HostID:     hostID,
		CreatedAt:  now,
		peers:      make(map[string]PeerInfo),
		lastSync:   now,
		emptySince: &now,
		bus:        bus,
		topic:      pubsub.Topics.Room(code),
		logger:     logger.With("room_code", code),
	}
}

// Topic returns the pub/sub topic backing this room's fan-out bus.
func (r *Room) Topic() string {
	return r.topic
}

// Subscribe attaches handler to this room's fan-out bus. The returned
// subscription must be unsubscribed by the caller on leave; it is not
// tied to peer membership.
func (r *Room) Subscribe(ctx context.Context, handler pubsub.Handler) (pubsub.Subscription, error) {
	return r.bus.Subscribe(ctx, r.topic, handler)
}

// Publish encodes and fans out a RoomEvent. Failures are logged and
// ignored: fan-out is best-effort by design.
func (r *Room) Publish(ctx context.Context, ev Event) {
	payload, err := encodeEvent(ev)
	if err != nil {
		r.logger.Error("failed to encode room event", "error", err, "kind", ev.Kind)
		return
	}
	msg := &pubsub.Message{Topic: r.topic, Type: string(ev.Kind), Payload: payload}
	if err := r.bus.Publish(ctx, r.topic, msg); err != nil {
		r.logger.Warn("failed to publish room event", "error", err, "kind", ev.Kind)
	}
}

// AddPeer inserts a peer, clearing empty_since (and logging a revive if
// the room was previously empty). Returns false if the peer ID is already
// taken.
func (r *Room) AddPeer(peer PeerInfo) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closing {
		return false
	}
	if _, exists := r.peers[peer.ID]; exists {
		return false
	}

	wasEmpty := r.emptySince != nil
	r.peers[peer.ID] = peer
	r.emptySince = nil
	metrics.RoomPeers.WithLabelValues(r.Code).Set(float64(len(r.peers)))

	if wasEmpty {
		r.logger.Info("room revived", "peer_id", peer.ID)
	}
	return true
}

// RemovePeer deletes a peer if present, setting empty_since when the
// room becomes empty. Returns true if a peer was actually removed, so
// callers can make the leave path idempotent.
func (r *Room) RemovePeer(peerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[peerID]; !exists {
		return false
	}

	delete(r.peers, peerID)
	metrics.RoomPeers.WithLabelValues(r.Code).Set(float64(len(r.peers)))
	if len(r.peers) == 0 {
		now := time.Now()
		r.emptySince = &now
	}
	return true
}

// Peers returns a snapshot of the current peer set.
func (r *Room) Peers() []PeerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PeerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// PeerCount reports the number of connected peers.
func (r *Room) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// EmptySince reports whether the room is currently empty and, if so,
// since when.
func (r *Room) EmptySince() (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.emptySince == nil {
		return time.Time{}, false
	}
	return *r.emptySince, true
}

// ReapIfIdle atomically checks whether the room has been empty for at
// least threshold and, if so, marks it closing under its own write guard
// so that it can be safely dropped from the registry. Once closing is
// set, AddPeer refuses new joins on this room, which is what lets the
// reaper and a racing Join resolve deterministically: whichever acquires
// the room's lock first decides the outcome for both.
func (r *Room) ReapIfIdle(threshold time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closing || r.emptySince == nil {
		return false
	}
	if now.Sub(*r.emptySince) < threshold {
		return false
	}
	r.closing = true
	return true
}

// SetDocument overwrites the last known document snapshot.
func (r *Room) SetDocument(doc string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documentState = doc
	r.hasDocument = true
	r.lastSync = time.Now()
}

// Document returns the last stored snapshot, or ("", false) if none has
// ever been pushed.
func (r *Room) Document() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.documentState, r.hasDocument
}

// eventWire is the JSON encoding of an Event, with Kind exposed as the
// discriminator sibling to the payload fields.
type eventWire struct {
	Type      EventKind `json:"type"`
	Peer      *PeerInfo `json:"peer,omitempty"`
	PeerID    string    `json:"peer_id,omitempty"`
	From      string    `json:"from,omitempty"`
	Data      string    `json:"data,omitempty"`
	Document  string    `json:"document,omitempty"`
	NewHostID string    `json:"new_host_id,omitempty"`
}

func encodeEvent(ev Event) (json.RawMessage, error) {
	wire := eventWire{
		Type:      ev.Kind,
		PeerID:    ev.PeerID,
		From:      ev.From,
		Data:      ev.Data,
		Document:  ev.Document,
		NewHostID: ev.NewHostID,
	}
	if ev.Kind == EventPeerJoined {
		wire.Peer = &ev.Peer
	}
	return json.Marshal(wire)
}

// DecodeEvent is the inverse of encodeEvent, used by subscribers that
// receive a pubsub.Message off the bus.
func DecodeEvent(payload json.RawMessage) (Event, error) {
	var wire eventWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Event{}, err
	}
	ev := Event{
		Kind:      wire.Type,
		PeerID:    wire.PeerID,
		From:      wire.From,
		Data:      wire.Data,
		Document:  wire.Document,
		NewHostID: wire.NewHostID,
	}
	if wire.Peer != nil {
		ev.Peer = *wire.Peer
	}
	return ev, nil
}
