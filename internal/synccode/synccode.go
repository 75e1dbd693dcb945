// Package synccode derives a short, human-shareable code from a node ID.
// It is a peripheral helper, not a secret or a security boundary.
package synccode

import (
	"crypto/rand"
	"fmt"
	"hash/fnv"
	"math/big"
)

// alphabet matches the room code alphabet so sync codes and room codes
// look and feel the same to a user typing them in.
const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const length = 6

// FromNodeID derives a stable 6-character code from nodeID via a
// non-cryptographic hash expanded in base-31 over alphabet. The same
// nodeID always yields the same code.
func FromNodeID(nodeID string) string {
	h := fnv.New64a()
	h.Write([]byte(nodeID))
	num := h.Sum64()

	buf := make([]byte, length)
	base := uint64(len(alphabet))
	for i := range buf {
		buf[i] = alphabet[num%base]
		num /= base
	}
	return string(buf)
}

// GenerateNodeID mints a fresh, effectively-unique identifier for a new
// CRDT replica to use as its own node_id.
func GenerateNodeID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return "", fmt.Errorf("synccode: failed to generate node id: %w", err)
	}
	return fmt.Sprintf("node_%x", n.Uint64()), nil
}
