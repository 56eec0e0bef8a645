package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/gemtable/api"
	"github.com/wricardo/gemtable/game/commands"
	"github.com/wricardo/gemtable/game/room"
	"github.com/wricardo/gemtable/registry"
	"github.com/wricardo/gemtable/transport/websocket"
)

func newAPI(t *testing.T) (*httptest.Server, *room.Store) {
	t.Helper()
	store := room.NewStore()
	reg := registry.New(zerolog.Nop())
	commands.Register(reg)
	hub := websocket.NewHub(websocket.Options{}, zerolog.Nop())
	server := httptest.NewServer(api.NewServer(store, reg, hub, zerolog.Nop()))
	t.Cleanup(server.Close)
	return server, store
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text, result.IsError
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.GetMCPServer())
}

func TestClient_ListRooms(t *testing.T) {
	server, store := newAPI(t)
	owner := room.Player{Name: "ada", SessionID: "s1"}
	_, err := store.CreateRoom("Alpha", "pw", &owner)
	require.NoError(t, err)

	client := NewClient(server.URL)
	text, isErr := call(t, client.handleListRooms, map[string]any{})
	assert.False(t, isErr)
	assert.Contains(t, text, "Alpha: 1/4 players, lobby [password]")

	text, _ = call(t, client.handleListRooms, map[string]any{"state": "in_progress"})
	assert.Contains(t, text, "No matching rooms (1 total)")
}

func TestClient_GetRoom(t *testing.T) {
	server, store := newAPI(t)
	owner := room.Player{Name: "ada", SessionID: "s1"}
	_, err := store.CreateRoom("Alpha", "", &owner)
	require.NoError(t, err)
	_, err = store.JoinRoom("Alpha", "", room.Player{Name: "bob", SessionID: "s2"})
	require.NoError(t, err)
	_, err = store.StartGame("Alpha", "s1")
	require.NoError(t, err)

	client := NewClient(server.URL)
	text, isErr := call(t, client.handleGetRoom, map[string]any{"room_name": "alpha"})
	assert.False(t, isErr)
	assert.Contains(t, text, "Owner: ada")
	assert.Contains(t, text, "Max token stack: 4")
	assert.Contains(t, text, "gold=5")

	text, isErr = call(t, client.handleGetRoom, map[string]any{"room_name": "missing"})
	assert.True(t, isErr)
	assert.Contains(t, text, "room not found")

	_, isErr = call(t, client.handleGetRoom, map[string]any{})
	assert.True(t, isErr)
}

func TestClient_StatsAndCommands(t *testing.T) {
	server, _ := newAPI(t)
	client := NewClient(server.URL)

	text, isErr := call(t, client.handleServerStats, nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "Commands registered: 9")

	text, isErr = call(t, client.handleListCommands, nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "- CreateRoom required: roomName, playerName optional: password")
	assert.Contains(t, text, "- ListRooms\n")
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.apiCall(context.Background(), http.MethodGet, "/api/stats", nil, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "API error"))
}

func TestClient_apiCall_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	err := client.apiCall(context.Background(), http.MethodGet, "/api/stats", nil, nil)
	assert.Error(t, err)
}
