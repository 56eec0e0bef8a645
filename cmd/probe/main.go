// Command probe sends a single command envelope to a running gem table server
// over WebSocket and prints every frame it receives until the wait window
// closes. It is meant for poking at the protocol by hand:
//
//	probe --url ws://localhost:8080/ws --type CreateRoom \
//	      --data '{"roomName":"alpha","playerName":"ada"}'
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/gemtable/protocol"
)

func main() {
	cmd := &cli.Command{
		Name:  "probe",
		Usage: "send one command to a gem table server and print the replies",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "WebSocket endpoint",
				Value:   "ws://localhost:8080/ws",
				Sources: cli.EnvVars("GEMTABLE_WS_URL"),
			},
			&cli.StringFlag{
				Name:     "type",
				Usage:    "command type, e.g. ListRooms",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "JSON payload",
			},
			&cli.StringFlag{
				Name:  "context-id",
				Usage: "messageContextId to send (random when empty)",
			},
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "how long to keep printing frames after sending",
				Value: 2 * time.Second,
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	frame, err := buildEnvelope(cmd.String("context-id"), cmd.String("type"), cmd.String("data"))
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cmd.String("url"), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", cmd.String("url"), err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	fmt.Fprintf(os.Stdout, "> %s\n", frame)

	return printFrames(conn, time.Now().Add(cmd.Duration("wait")), os.Stdout)
}

// buildEnvelope encodes one inbound envelope. An empty data string sends an
// empty object.
func buildEnvelope(contextID, msgType, data string) ([]byte, error) {
	if msgType == "" {
		return nil, errors.New("type is required")
	}
	if contextID == "" {
		contextID = uuid.NewString()
	}
	if data == "" {
		data = "{}"
	}
	if !json.Valid([]byte(data)) {
		return nil, fmt.Errorf("data is not valid JSON: %s", data)
	}

	env := protocol.Envelope{
		MessageContextID: contextID,
		Type:             msgType,
		Data:             json.RawMessage(data),
	}
	return json.Marshal(env)
}

type frameReader interface {
	SetReadDeadline(t time.Time) error
	ReadMessage() (int, []byte, error)
}

// printFrames writes every frame received before deadline. Hitting the
// deadline is the normal way out.
func printFrames(conn frameReader, deadline time.Time, out io.Writer) error {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		fmt.Fprintf(out, "< %s\n", msg)
	}
}
