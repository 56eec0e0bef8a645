// Package commands implements the client commands of the gem table server.
// Each command is a small handler variant built per message by the registry.
package commands

import (
	"errors"
	"strings"

	"github.com/wricardo/gemtable/game/room"
	"github.com/wricardo/gemtable/registry"
)

// Broadcast event types.
const (
	EventPlayerJoined  = "PlayerJoined"
	EventPlayerLeft    = "PlayerLeft"
	EventOwnerChanged  = "OwnerChanged"
	EventGameStarted   = "GameStarted"
	EventTokensChanged = "TokensChanged"
	EventChatMessage   = "ChatMessage"
)

// All returns the registration table for every command, in a fixed order.
func All() []registry.Registration {
	return []registry.Registration{
		registry.Define("", newCreateRoom),
		registry.Define("", newJoinRoom),
		registry.Define("", newLeaveRoom),
		registry.Define("", newListRooms),
		registry.Define("", newGetRoom),
		registry.Define("", newStartGame),
		registry.Define("", newTakeTokens),
		registry.Define("", newReturnTokens),
		registry.Define("", newSendChat),
	}
}

// Register adds every command to reg.
func Register(reg *registry.Registry) registry.Report {
	return reg.Register(All()...)
}

// reject turns expected store failures into FAILURE replies. Anything else is
// returned to the dispatcher, which answers with a server error.
func reject(sink registry.ReplySink, err error) error {
	if room.IsClientError(err) || isInputError(err) {
		return sink.Fail(err)
	}
	return err
}

var (
	ErrEmptyMessage   = errors.New("chat message is empty")
	ErrMessageTooLong = errors.New("chat message is too long")
)

func isInputError(err error) bool {
	return errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrMessageTooLong)
}

// others returns the session IDs in snap except the given one.
func others(snap room.Snapshot, except string) []string {
	ids := make([]string, 0, len(snap.Players))
	for _, id := range snap.SessionIDs() {
		if id != except {
			ids = append(ids, id)
		}
	}
	return ids
}

func memberOf(snap room.Snapshot, sessionID string) (room.Player, bool) {
	for _, p := range snap.Players {
		if p.SessionID == sessionID {
			return p, true
		}
	}
	return room.Player{}, false
}

func clean(s string) string { return strings.TrimSpace(s) }
