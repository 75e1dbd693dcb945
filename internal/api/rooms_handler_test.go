package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khunphaen/syncserver/internal/pubsub"
	"github.com/khunphaen/syncserver/internal/room"
)

func testRegistry(t *testing.T) *room.Registry {
	t.Helper()
	bus := pubsub.NewMemoryPubSub()
	t.Cleanup(func() { _ = bus.Close() })
	return room.NewRegistry(bus, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRoomsHandler_CreateGeneratesCode(t *testing.T) {
	h := NewRoomsHandler(testRegistry(t), "")
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", nil)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["restored"])
	assert.Len(t, body["room_code"], 6)
}

func TestRoomsHandler_CreateIsIdempotentOnDesiredCode(t *testing.T) {
	h := NewRoomsHandler(testRegistry(t), "")

	first := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(`{"desired_room_code":"ABC234"}`))
	rec1 := httptest.NewRecorder()
	h.Create(rec1, first)

	second := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(`{"desired_room_code":"ABC234","desired_host_id":"someone_else"}`))
	rec2 := httptest.NewRecorder()
	h.Create(rec2, second)

	var body1, body2 map[string]any
	require.NoError(t, json.Unmarshal(rec1.Body.Bytes(), &body1))
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &body2))

	assert.False(t, body1["restored"].(bool))
	assert.True(t, body2["restored"].(bool))
	assert.Equal(t, body1["room_id"], body2["room_id"])
	assert.Equal(t, body1["host_id"], body2["host_id"])
}

func TestRoomsHandler_GetMissingRoom(t *testing.T) {
	h := NewRoomsHandler(testRegistry(t), "")
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/ZZZ999", nil)
	req.SetPathValue("room_code", "ZZZ999")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestRoomsHandler_GetExistingRoom(t *testing.T) {
	registry := testRegistry(t)
	registry.Create("ABC234", "host_a")

	h := NewRoomsHandler(registry, "")
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/ABC234", nil)
	req.SetPathValue("room_code", "ABC234")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["peer_count"])
}
