package room

import (
	"strings"
	"testing"

	"github.com/khunphaen/syncserver/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(pubsub.NewMemoryPubSub(), testLogger())
}

func TestRegistry_CreateGeneratesCode(t *testing.T) {
	reg := testRegistry()

	r, created := reg.Create("", "")
	require.True(t, created)
	assert.Len(t, r.Code, RoomCodeLength)
	for _, ch := range r.Code {
		assert.Contains(t, RoomCodeAlphabet, string(ch))
	}
}

func TestRegistry_CreateIsIdempotentOnDesiredCode(t *testing.T) {
	reg := testRegistry()

	first, created := reg.Create("ABC234", "host_1")
	require.True(t, created)

	second, created := reg.Create("ABC234", "host_2")
	assert.False(t, created, "restoring an existing code should not create a new room")
	assert.Same(t, first, second)
	assert.Equal(t, "host_1", second.HostID, "the original host_id must survive a restore request")
}

func TestRegistry_GetMissing(t *testing.T) {
	reg := testRegistry()
	_, ok := reg.Get("ZZZZZZ")
	assert.False(t, ok)
}

func TestRegistry_RemoveThenGetMisses(t *testing.T) {
	reg := testRegistry()
	reg.Create("ABC234", "")

	assert.True(t, reg.Remove("ABC234"))
	_, ok := reg.Get("ABC234")
	assert.False(t, ok)
	assert.False(t, reg.Remove("ABC234"), "removing twice should report nothing left to remove")
}

func TestRegistry_Count(t *testing.T) {
	reg := testRegistry()
	assert.Equal(t, 0, reg.Count())

	reg.Create("AAA222", "")
	reg.Create("BBB333", "")
	assert.Equal(t, 2, reg.Count())
}

func TestGenerateRoomCode_UsesRestrictedAlphabet(t *testing.T) {
	code := GenerateRoomCode()
	require.Len(t, code, RoomCodeLength)
	for _, ambiguous := range []string{"0", "O", "1", "I", "L"} {
		assert.False(t, strings.Contains(code, ambiguous))
	}
}
