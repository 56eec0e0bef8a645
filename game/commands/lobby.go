package commands

import (
	"context"

	"github.com/wricardo/gemtable/game/room"
	"github.com/wricardo/gemtable/registry"
)

// CreateRoomRequest creates a room and seats the caller as its owner.
type CreateRoomRequest struct {
	RoomName   string `json:"roomName"`
	PlayerName string `json:"playerName"`
	Password   string `json:"password,omitempty"`
}

type createRoom struct {
	registry.Request[CreateRoomRequest]
}

func newCreateRoom(req registry.Request[CreateRoomRequest]) registry.Handler {
	return &createRoom{req}
}

func (h *createRoom) Handle(ctx context.Context) error {
	owner := room.Player{Name: clean(h.Payload.PlayerName), SessionID: h.ConnID}
	snap, err := h.Store.CreateRoom(h.Payload.RoomName, h.Payload.Password, &owner)
	if err != nil {
		return reject(h.Sink, err)
	}
	return h.Sink.Reply(snap)
}

// JoinRoomRequest seats the caller in an existing room.
type JoinRoomRequest struct {
	RoomName   string `json:"roomName"`
	PlayerName string `json:"playerName"`
	Password   string `json:"password,omitempty"`
}

type joinRoom struct {
	registry.Request[JoinRoomRequest]
}

func newJoinRoom(req registry.Request[JoinRoomRequest]) registry.Handler {
	return &joinRoom{req}
}

// PlayerEvent is broadcast when a player joins or leaves a room.
type PlayerEvent struct {
	Room    string        `json:"room"`
	Player  room.Player   `json:"player"`
	Players []room.Player `json:"players"`
}

func (h *joinRoom) Handle(ctx context.Context) error {
	p := room.Player{Name: clean(h.Payload.PlayerName), SessionID: h.ConnID}
	snap, err := h.Store.JoinRoom(h.Payload.RoomName, h.Payload.Password, p)
	if err != nil {
		return reject(h.Sink, err)
	}
	h.Sink.Broadcast(others(snap, h.ConnID), EventPlayerJoined, PlayerEvent{
		Room:    snap.Name,
		Player:  p,
		Players: snap.Players,
	})
	return h.Sink.Reply(snap)
}

// LeaveRoomRequest removes the caller from a room.
type LeaveRoomRequest struct {
	RoomName string `json:"roomName"`
}

type leaveRoom struct {
	registry.Request[LeaveRoomRequest]
}

func newLeaveRoom(req registry.Request[LeaveRoomRequest]) registry.Handler {
	return &leaveRoom{req}
}

// OwnerEvent is broadcast when room ownership passes to another player.
type OwnerEvent struct {
	Room  string      `json:"room"`
	Owner room.Player `json:"owner"`
}

func (h *leaveRoom) Handle(ctx context.Context) error {
	res, err := h.Store.LeaveRoom(h.Payload.RoomName, h.ConnID)
	if err != nil {
		return reject(h.Sink, err)
	}
	AnnounceLeave(h.Sink, res)
	return h.Sink.Reply(res.Room)
}

// AnnounceLeave broadcasts the events that follow a successful leave to the
// players still in the room.
func AnnounceLeave(sink registry.ReplySink, res room.LeaveResult) {
	remaining := res.Room.SessionIDs()
	if len(remaining) == 0 {
		return
	}
	sink.Broadcast(remaining, EventPlayerLeft, PlayerEvent{
		Room:    res.Room.Name,
		Player:  res.Player,
		Players: res.Room.Players,
	})
	if res.OwnerChanged && res.Room.Owner != nil {
		sink.Broadcast(remaining, EventOwnerChanged, OwnerEvent{Room: res.Room.Name, Owner: *res.Room.Owner})
	}
}

// ListRoomsRequest takes no fields; clients send an empty object.
type ListRoomsRequest struct{}

type listRooms struct {
	registry.Request[ListRoomsRequest]
}

func newListRooms(req registry.Request[ListRoomsRequest]) registry.Handler {
	return &listRooms{req}
}

// RoomList is the ListRooms reply.
type RoomList struct {
	Rooms []room.Summary `json:"rooms"`
}

func (h *listRooms) Handle(ctx context.Context) error {
	return h.Sink.Reply(RoomList{Rooms: h.Store.List()})
}

// GetRoomRequest fetches a single room.
type GetRoomRequest struct {
	RoomName string `json:"roomName"`
}

type getRoom struct {
	registry.Request[GetRoomRequest]
}

func newGetRoom(req registry.Request[GetRoomRequest]) registry.Handler {
	return &getRoom{req}
}

func (h *getRoom) Handle(ctx context.Context) error {
	snap, err := h.Store.Snapshot(h.Payload.RoomName)
	if err != nil {
		return reject(h.Sink, err)
	}
	return h.Sink.Reply(snap)
}
