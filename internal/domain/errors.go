// Package domain holds sentinel errors shared across the room server and
// CRDT replica, matched against with errors.Is at call sites.
package domain

import "errors"

var (
	// Room errors
	ErrRoomNotFound = errors.New("room not found")
	ErrRateLimited  = errors.New("rate limit exceeded")

	// CRDT errors
	ErrCrdtDecode = errors.New("failed to decode crdt payload")
)
