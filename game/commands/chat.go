package commands

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/wricardo/gemtable/game/room"
	"github.com/wricardo/gemtable/registry"
)

// MaxChatLength bounds a chat message in runes.
const MaxChatLength = 500

// SendChatRequest posts a chat line to the caller's room.
type SendChatRequest struct {
	RoomName string `json:"roomName"`
	Text     string `json:"text"`
}

// ChatEvent is broadcast to the other players in the room.
type ChatEvent struct {
	Room   string      `json:"room"`
	From   room.Player `json:"from"`
	Text   string      `json:"text"`
	SentAt time.Time   `json:"sentAt"`
}

type sendChat struct {
	registry.Request[SendChatRequest]
}

func newSendChat(req registry.Request[SendChatRequest]) registry.Handler {
	return &sendChat{req}
}

func (h *sendChat) Handle(ctx context.Context) error {
	text := clean(h.Payload.Text)
	switch {
	case text == "":
		return reject(h.Sink, ErrEmptyMessage)
	case utf8.RuneCountInString(text) > MaxChatLength:
		return reject(h.Sink, ErrMessageTooLong)
	}

	snap, err := h.Store.Snapshot(h.Payload.RoomName)
	if err != nil {
		return reject(h.Sink, err)
	}
	from, ok := memberOf(snap, h.ConnID)
	if !ok {
		return reject(h.Sink, &room.MembershipError{Room: snap.Name, SessionID: h.ConnID})
	}

	event := ChatEvent{Room: snap.Name, From: from, Text: text, SentAt: time.Now().UTC()}
	h.Sink.Broadcast(others(snap, h.ConnID), EventChatMessage, event)
	return h.Sink.Reply(event)
}
