package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/gemtable/dispatch"
	"github.com/wricardo/gemtable/game/commands"
	"github.com/wricardo/gemtable/game/room"
	"github.com/wricardo/gemtable/protocol"
	"github.com/wricardo/gemtable/registry"
)

// echoHandler replies to every frame with the frame's text.
type echoHandler struct {
	hub *Hub

	mu           sync.Mutex
	disconnected []string
}

func (e *echoHandler) Dispatch(ctx context.Context, connID string, raw []byte) dispatch.Outcome {
	e.hub.Send(connID, protocol.Outbound{Type: "Echo", Result: protocol.ResultOK, Data: string(raw)})
	return dispatch.OutcomeReplied
}

func (e *echoHandler) Disconnect(connID string) {
	e.mu.Lock()
	e.disconnected = append(e.disconnected, connID)
	e.mu.Unlock()
}

func (e *echoHandler) disconnects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.disconnected)
}

func startHub(t *testing.T, opts Options, bind func(*Hub) FrameHandler) (*Hub, string) {
	t.Helper()
	hub := NewHub(opts, zerolog.Nop())
	hub.Bind(bind(hub))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readOutbound(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_EchoRoundTrip(t *testing.T) {
	handler := &echoHandler{}
	hub, url := startHub(t, Options{}, func(h *Hub) FrameHandler {
		handler.hub = h
		return handler
	})

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	msg := readOutbound(t, conn)
	assert.Equal(t, "Echo", msg["type"])
	assert.Equal(t, "hello", msg["data"])

	stats := hub.Stats()
	assert.Equal(t, int64(1), stats.MessagesIn)
	assert.Equal(t, int64(1), stats.MessagesOut)
	assert.Equal(t, int64(1), stats.ConnectionsTotal)
}

func TestHub_DisconnectReleasesClient(t *testing.T) {
	handler := &echoHandler{}
	hub, url := startHub(t, Options{}, func(h *Hub) FrameHandler {
		handler.hub = h
		return handler
	})

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)
	conn.Close()

	assert.Eventually(t, func() bool { return hub.Count() == 0 && handler.disconnects() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	handler := &echoHandler{}
	hub, url := startHub(t, Options{}, func(h *Hub) FrameHandler {
		handler.hub = h
		return handler
	})

	dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	conns := hub.Connections()
	require.Len(t, conns, 1)
	id := conns[0].ID()
	assert.NoError(t, conns[0].Close())
	assert.NoError(t, conns[0].Close())

	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, handler.disconnects())

	err := hub.Send(id, protocol.Event("Late", nil))
	assert.ErrorIs(t, err, dispatch.ErrConnectionClosed)
}

func TestHub_PongUpdatesLastPong(t *testing.T) {
	handler := &echoHandler{}
	hub, url := startHub(t, Options{PingPeriod: 20 * time.Millisecond}, func(h *Hub) FrameHandler {
		handler.hub = h
		return handler
	})

	conn := dial(t, url)
	// The default ping handler answers pings while the client reads.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)
	first := hub.Connections()[0].LastPong()
	assert.Eventually(t, func() bool {
		conns := hub.Connections()
		return len(conns) == 1 && conns[0].LastPong().After(first)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_SendUnknownConnection(t *testing.T) {
	hub := NewHub(Options{}, zerolog.Nop())
	err := hub.Send("nobody", protocol.Event("X", nil))
	assert.ErrorIs(t, err, dispatch.ErrConnectionClosed)
	assert.Equal(t, int64(1), hub.Stats().Dropped)
}

func TestHub_WithDispatcher(t *testing.T) {
	store := room.NewStore()
	hub, url := startHub(t, Options{}, func(h *Hub) FrameHandler {
		reg := registry.New(zerolog.Nop())
		commands.Register(reg)
		return dispatch.New(reg, store, h, zerolog.Nop())
	})

	alice := dial(t, url)
	bob := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 5*time.Millisecond)

	send := func(conn *websocket.Conn, typ string, data any) string {
		id := uuid.NewString()
		require.NoError(t, conn.WriteJSON(map[string]any{"messageContextId": id, "type": typ, "data": data}))
		return id
	}

	id := send(alice, "CreateRoom", map[string]string{"roomName": "Table", "playerName": "Alice"})
	msg := readOutbound(t, alice)
	assert.Equal(t, id, msg["messageContextId"])
	assert.Equal(t, "CreateRoomResponse", msg["type"])
	assert.Equal(t, "OK", msg["result"])

	send(bob, "JoinRoom", map[string]string{"roomName": "Table", "playerName": "Bob"})
	assert.Equal(t, "JoinRoomResponse", readOutbound(t, bob)["type"])
	assert.Equal(t, commands.EventPlayerJoined, readOutbound(t, alice)["type"])

	id = send(bob, "Unknown", map[string]string{})
	msg = readOutbound(t, bob)
	assert.Equal(t, id, msg["messageContextId"])
	assert.Equal(t, "FAILURE", msg["result"])

	bob.Close()
	msg = readOutbound(t, alice)
	assert.Equal(t, commands.EventPlayerLeft, msg["type"])
	assert.Eventually(t, func() bool {
		snap, err := store.Snapshot("Table")
		return err == nil && len(snap.Players) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
