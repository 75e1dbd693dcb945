// Package crdt implements the per-node conflict-free task replica: tagged
// tasks with last-writer-wins field registers keyed by a Lamport timestamp,
// soft deletion, and both full-state merge and operation-log replay paths
// to convergence.
package crdt

import "fmt"

// Timestamp totally orders events across nodes without a shared clock:
// Counter dominates, NodeID breaks ties. True ties never occur because a
// given (counter, node_id) pair is only ever minted by one node.
type Timestamp struct {
	Counter uint64 `json:"counter"`
	NodeID  string `json:"node_id"`
}

// Less reports whether t sorts strictly before other under the
// lexicographic (counter, node_id) order.
func (t Timestamp) Less(other Timestamp) bool {
	if t.Counter != other.Counter {
		return t.Counter < other.Counter
	}
	return t.NodeID < other.NodeID
}

// Greater reports whether t sorts strictly after other.
func (t Timestamp) Greater(other Timestamp) bool {
	return other.Less(t)
}

func (t Timestamp) String() string {
	return fmt.Sprintf("(%d,%s)", t.Counter, t.NodeID)
}

// Clock mints strictly increasing timestamps for a single node. It must
// only ever be driven from that node's own thread of control; there is no
// internal synchronization.
type Clock struct {
	nodeID  string
	counter uint64
}

// NewClock creates a Lamport clock for nodeID, starting at counter 0.
func NewClock(nodeID string) *Clock {
	return &Clock{nodeID: nodeID}
}

// NodeID returns the clock's owning node identifier.
func (c *Clock) NodeID() string {
	return c.nodeID
}

// Next increments the counter and returns the new timestamp.
func (c *Clock) Next() Timestamp {
	c.counter++
	return Timestamp{Counter: c.counter, NodeID: c.nodeID}
}

// Counter returns the current counter value without advancing it.
func (c *Clock) Counter() uint64 {
	return c.counter
}
