package room

import (
	"crypto/rand"
	"log/slog"
	"math/big"
	"sync"

	"github.com/khunphaen/syncserver/internal/metrics"
	"github.com/khunphaen/syncserver/internal/pubsub"
)

// Registry is the concurrent room_code -> *Room mapping and the only way
// to look a Room up by code. A joined session keeps the *Room it joined
// until it leaves; the reaper marks a room closing before removing it, and
// a closing room refuses new peers, so a stale handle can never add peers
// to a reaped room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	bus    pubsub.PubSub
	logger *slog.Logger
}

// NewRegistry creates an empty room registry.
func NewRegistry(bus pubsub.PubSub, logger *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		bus:    bus,
		logger: logger,
	}
}

// Get looks up a room by code without creating it.
func (reg *Registry) Get(code string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[code]
	return r, ok
}

// Create inserts a new room if the desired code is unoccupied, or returns
// the existing room at that code (insert-if-absent). If desiredCode is
// empty, a fresh code is generated; a generation collision is accepted as
// whichever room the insert-if-absent resolves to, per the registry's
// semantics.
//
// The returned bool is true when a new room was created, false when an
// existing room was returned.
func (reg *Registry) Create(desiredCode, desiredHostID string) (*Room, bool) {
	code := desiredCode
	if code == "" {
		code = GenerateRoomCode()
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if existing, ok := reg.rooms[code]; ok {
		return existing, false
	}

	hostID := desiredHostID
	if hostID == "" {
		hostID = "host_" + GenerateRoomCode()
	}

	r := New(code, hostID, reg.bus, reg.logger)
	reg.rooms[code] = r
	metrics.ActiveRooms.Set(float64(len(reg.rooms)))
	reg.logger.Info("room created", "room_code", code, "host_id", hostID)
	return r, true
}

// Remove deletes the room at code if it is still present, returning true
// if a room was actually removed. Used by the idle reaper, which must
// hold no other lock while calling this.
func (reg *Registry) Remove(code string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[code]; !ok {
		return false
	}
	delete(reg.rooms, code)
	metrics.ActiveRooms.Set(float64(len(reg.rooms)))
	metrics.RoomPeers.DeleteLabelValues(code)
	return true
}

// Count returns the number of live rooms.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Snapshot returns every room currently registered, for the idle reaper
// to scan without holding the registry lock during its own per-room
// checks.
func (reg *Registry) Snapshot() []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}

// GenerateRoomCode draws a RoomCodeLength-character code from
// RoomCodeAlphabet using a CSPRNG.
func GenerateRoomCode() string {
	b := make([]byte, RoomCodeLength)
	max := big.NewInt(int64(len(RoomCodeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is not something we can recover from
			// meaningfully; fall back to the first alphabet character
			// rather than panic mid-request.
			b[i] = RoomCodeAlphabet[0]
			continue
		}
		b[i] = RoomCodeAlphabet[n.Int64()]
	}
	return string(b)
}
