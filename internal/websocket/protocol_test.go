package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khunphaen/syncserver/internal/room"
)

func TestClientMessage_UnmarshalJoin(t *testing.T) {
	raw := `{"action":"join","room_code":"ABC234","peer_id":"a","is_host":true}`
	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.Equal(t, ActionJoin, msg.Action)
	assert.Equal(t, "ABC234", msg.RoomCode)
	assert.Equal(t, "a", msg.PeerID)
	assert.True(t, msg.IsHost)
}

func TestClientMessage_UnmarshalRejectsUnknownAction(t *testing.T) {
	var msg ClientMessage
	err := json.Unmarshal([]byte(`{"action":"teleport"}`), &msg)
	assert.Error(t, err)
}

func TestClientMessage_BroadcastFields(t *testing.T) {
	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(`{"action":"broadcast","data":"hi"}`), &msg))
	assert.Equal(t, ActionBroadcast, msg.Action)
	assert.Equal(t, "hi", msg.Data)
}

func TestServerMessage_TagIsSiblingNotNested(t *testing.T) {
	data, err := json.Marshal(newDataMessage("b", "hi"))
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "data", generic["type"])
	assert.Equal(t, "b", generic["from"])
	assert.Equal(t, "hi", generic["data"])
}

func TestServerMessage_PeerJoinedOmitsUnrelatedFields(t *testing.T) {
	data, err := json.Marshal(newPeerJoinedMessage(room.PeerInfo{ID: "a"}))
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "peer_joined", generic["type"])
	assert.Contains(t, generic, "peer")
	assert.NotContains(t, generic, "data")
	assert.NotContains(t, generic, "document")
}

func TestServerMessage_PongHasNoPayload(t *testing.T) {
	data, err := json.Marshal(newPongMessage())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))
}

func TestServerMessage_ErrorMessageField(t *testing.T) {
	data, err := json.Marshal(newErrorMessage("room not found"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"room not found"}`, string(data))
}
