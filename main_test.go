package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/gemtable/game/config"
	"github.com/wricardo/gemtable/game/room"
	"github.com/wricardo/gemtable/protocol"
)

func TestLocalURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", localURL(":8080"))
	assert.Equal(t, "http://127.0.0.1:9000", localURL("127.0.0.1:9000"))
}

func TestJanitorInterval(t *testing.T) {
	assert.Equal(t, time.Second, janitorInterval(100*time.Millisecond))
	assert.Equal(t, 15*time.Second, janitorInterval(30*time.Second))
	assert.Equal(t, time.Minute, janitorInterval(time.Hour))
}

func TestRoomJanitor(t *testing.T) {
	store := room.NewStore()
	owner := room.Player{Name: "ada", SessionID: "s1"}
	_, err := store.CreateRoom("Alpha", "", &owner)
	require.NoError(t, err)
	_, err = store.LeaveRoom("Alpha", "s1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		roomJanitor(ctx, store, 5*time.Millisecond, time.Nanosecond, zerolog.Nop())
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.Count() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, false, zerolog.WarnLevel)
	log.Info().Msg("hidden")
	log.Warn().Str("room", "alpha").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"room":"alpha"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestNewCommand(t *testing.T) {
	cmd := newCommand()
	assert.Equal(t, "gemtable", cmd.Name)
	assert.Equal(t, Version, cmd.Version)

	names := make([]string, 0, len(cmd.Commands))
	for _, sub := range cmd.Commands {
		names = append(names, sub.Name)
	}
	assert.ElementsMatch(t, []string{"serve", "mcp"}, names)
}

func TestLoadSettings_FlagOverrides(t *testing.T) {
	var got config.Settings
	cmd := &cli.Command{
		Name:  "test",
		Flags: serveFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, s, err := loadSettings(cmd)
			got = s
			return err
		},
	}

	err := cmd.Run(context.Background(), []string{"test", "--addr", ":9999", "--log-level", "debug"})
	require.NoError(t, err)
	assert.Equal(t, ":9999", got.Addr)
	assert.Equal(t, zerolog.DebugLevel, got.Level())
}

func TestLoadSettings_InvalidLevel(t *testing.T) {
	cmd := &cli.Command{
		Name:  "test",
		Flags: serveFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, _, err := loadSettings(cmd)
			return err
		},
	}

	err := cmd.Run(context.Background(), []string{"test", "--log-level", "loud"})
	assert.Error(t, err)
}

func startApplication(t *testing.T) (*application, *httptest.Server) {
	t.Helper()
	app, err := newApplication(config.Defaults(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	app.start(ctx, &wg)

	server := httptest.NewServer(app.handler)
	t.Cleanup(func() {
		server.Close()
		cancel()
		wg.Wait()
	})
	return app, server
}

func TestApplication_WebSocketCreateRoom(t *testing.T) {
	app, server := startApplication(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	frame := `{"messageContextId":"0b5f2c1e-8f3a-4e5b-9d4a-2f1c3b6a7e90","type":"CreateRoom","data":{"roomName":"Alpha","playerName":"ada"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply protocol.Outbound
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "CreateRoomResponse", reply.Type)
	assert.Equal(t, protocol.ResultOK, reply.Result)
	assert.Equal(t, "0b5f2c1e-8f3a-4e5b-9d4a-2f1c3b6a7e90", reply.MessageContextID)
	assert.Equal(t, 1, app.store.Count())
}

func TestApplication_RESTAndMCP(t *testing.T) {
	_, server := startApplication(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/mcp")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(server.URL+"/mcp", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var rpc map[string]any
	require.NoError(t, json.Unmarshal(body, &rpc))
	assert.Equal(t, "2.0", rpc["jsonrpc"])
	assert.Nil(t, rpc["error"])
}
