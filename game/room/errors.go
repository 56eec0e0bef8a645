package room

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomExists      = errors.New("room already exists")
	ErrInvalidRoomName = errors.New("invalid room name")
	ErrInvalidPlayer   = errors.New("player name and session are required")
	ErrWrongPassword   = errors.New("wrong room password")
	ErrGameInProgress  = errors.New("game already in progress")
	ErrGameNotStarted  = errors.New("game has not started")
	ErrNotOwner        = errors.New("only the room owner can do that")
)

// CapacityError is returned when joining a full room.
type CapacityError struct {
	Room     string
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("room %q is full (%d players)", e.Room, e.Capacity)
}

// MembershipError is returned when a session is already seated, or is not
// seated, where the operation requires otherwise.
type MembershipError struct {
	Room      string
	SessionID string
	// Member is true when the session is already in Room.
	Member bool
	// Elsewhere names another room the session already sits in.
	Elsewhere string
}

func (e *MembershipError) Error() string {
	switch {
	case e.Elsewhere != "":
		return fmt.Sprintf("player is already in room %q", e.Elsewhere)
	case e.Member:
		return fmt.Sprintf("player is already a member of room %q", e.Room)
	default:
		return fmt.Sprintf("player is not a member of room %q", e.Room)
	}
}

// InvalidPlayerCountError is returned when a game is started with a player
// count outside [MinPlayers, Capacity].
type InvalidPlayerCountError struct {
	Count int
}

func (e *InvalidPlayerCountError) Error() string {
	return fmt.Sprintf("a game needs %d to %d players, room has %d", MinPlayers, Capacity, e.Count)
}

// TokenError describes a rejected token transfer.
type TokenError struct {
	Color  Color
	Reason string
}

func (e *TokenError) Error() string {
	if e.Color == "" {
		return "invalid token request: " + e.Reason
	}
	return fmt.Sprintf("invalid token request for %s: %s", e.Color, e.Reason)
}

// IsClientError reports whether err is an expected, client-recoverable store
// failure.
func IsClientError(err error) bool {
	if err == nil {
		return false
	}
	for _, sentinel := range []error{
		ErrRoomNotFound, ErrRoomExists, ErrInvalidRoomName, ErrInvalidPlayer,
		ErrWrongPassword, ErrGameInProgress, ErrGameNotStarted, ErrNotOwner,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	var (
		capErr   *CapacityError
		memErr   *MembershipError
		countErr *InvalidPlayerCountError
		tokErr   *TokenError
	)
	return errors.As(err, &capErr) || errors.As(err, &memErr) ||
		errors.As(err, &countErr) || errors.As(err, &tokErr)
}
