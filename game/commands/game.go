package commands

import (
	"context"

	"github.com/wricardo/gemtable/game/room"
	"github.com/wricardo/gemtable/registry"
)

// StartGameRequest starts the game in the caller's room. Only the owner may
// send it.
type StartGameRequest struct {
	RoomName string `json:"roomName"`
}

type startGame struct {
	registry.Request[StartGameRequest]
}

func newStartGame(req registry.Request[StartGameRequest]) registry.Handler {
	return &startGame{req}
}

func (h *startGame) Handle(ctx context.Context) error {
	snap, err := h.Store.StartGame(h.Payload.RoomName, h.ConnID)
	if err != nil {
		return reject(h.Sink, err)
	}
	h.Sink.Broadcast(others(snap, h.ConnID), EventGameStarted, snap)
	return h.Sink.Reply(snap)
}

// TokensRequest moves tokens between the pool and the caller. Keys are color
// names.
type TokensRequest struct {
	RoomName string         `json:"roomName"`
	Tokens   map[string]int `json:"tokens"`
}

// TakeTokensRequest takes tokens from the pool.
type TakeTokensRequest TokensRequest

// ReturnTokensRequest gives tokens back to the pool.
type ReturnTokensRequest TokensRequest

// TokensEvent is broadcast after any token transfer.
type TokensEvent struct {
	Room     string                 `json:"room"`
	Player   string                 `json:"player"`
	Pool     room.Tokens            `json:"pool"`
	Holdings map[string]room.Tokens `json:"holdings"`
}

type transfer func(name, sessionID string, req room.Tokens) (room.Snapshot, error)

func runTransfer(req registry.Request[TokensRequest], move transfer) error {
	tokens, err := room.ParseTokens(req.Payload.Tokens)
	if err != nil {
		return reject(req.Sink, err)
	}
	snap, err := move(req.Payload.RoomName, req.ConnID, tokens)
	if err != nil {
		return reject(req.Sink, err)
	}
	req.Sink.Broadcast(others(snap, req.ConnID), EventTokensChanged, TokensEvent{
		Room:     snap.Name,
		Player:   req.ConnID,
		Pool:     snap.Pool,
		Holdings: snap.Holdings,
	})
	return req.Sink.Reply(snap)
}

func rebind[T any](req registry.Request[T], payload TokensRequest) registry.Request[TokensRequest] {
	return registry.Request[TokensRequest]{
		ConnID:  req.ConnID,
		Message: req.Message,
		Payload: payload,
		Sink:    req.Sink,
		Store:   req.Store,
	}
}

type takeTokens struct {
	req registry.Request[TokensRequest]
}

func newTakeTokens(req registry.Request[TakeTokensRequest]) registry.Handler {
	return &takeTokens{rebind(req, TokensRequest(req.Payload))}
}

func (h *takeTokens) Handle(ctx context.Context) error {
	return runTransfer(h.req, h.req.Store.TakeTokens)
}

type returnTokens struct {
	req registry.Request[TokensRequest]
}

func newReturnTokens(req registry.Request[ReturnTokensRequest]) registry.Handler {
	return &returnTokens{rebind(req, TokensRequest(req.Payload))}
}

func (h *returnTokens) Handle(ctx context.Context) error {
	return runTransfer(h.req, h.req.Store.ReturnTokens)
}
