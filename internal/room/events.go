package room

// EventKind discriminates the RoomEvent sum type published on a room's bus.
type EventKind string

const (
	EventPeerJoined     EventKind = "peer_joined"
	EventPeerLeft       EventKind = "peer_left"
	EventDataSync       EventKind = "data_sync"
	EventDocumentUpdate EventKind = "document_update"
	EventHostChanged    EventKind = "host_changed"
)

// Event is the tagged union of everything a Room publishes to its bus.
// Only the fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	Peer      PeerInfo // EventPeerJoined
	PeerID    string   // EventPeerLeft
	From      string   // EventDataSync, EventDocumentUpdate
	Data      string   // EventDataSync
	Document  string   // EventDocumentUpdate
	NewHostID string   // EventHostChanged
}
