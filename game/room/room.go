package room

import (
	"sync"
	"time"
)

const (
	// Capacity is the maximum number of players in a room.
	Capacity = 4
	// MinPlayers is the minimum number of players needed to start a game.
	MinPlayers = 2

	maxRoomNameLength = 32
)

// State is the lifecycle state of a room.
type State string

const (
	StateLobby      State = "lobby"
	StateInProgress State = "in_progress"
)

// Player identifies a seated participant. Identity is the session ID; two
// players may share a display name.
type Player struct {
	Name      string `json:"name"`
	SessionID string `json:"sessionId"`
}

// Room is a bounded-membership lobby that becomes a game once started.
// All fields are guarded by mu.
type Room struct {
	mu sync.Mutex

	key      string
	name     string
	password string
	owner    string
	players  []Player
	state    State

	maxTokenStack int
	pool          *Pool
	holdings      map[string]Tokens

	createdAt  time.Time
	emptySince time.Time
	removed    bool
}

// Snapshot is a point-in-time copy of a room.
type Snapshot struct {
	Name          string            `json:"name"`
	HasPassword   bool              `json:"hasPassword"`
	Owner         *Player           `json:"owner,omitempty"`
	Players       []Player          `json:"players"`
	State         State             `json:"state"`
	MaxTokenStack int               `json:"maxTokenStack,omitempty"`
	Pool          Tokens            `json:"pool,omitempty"`
	Holdings      map[string]Tokens `json:"holdings,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// SessionIDs returns the session IDs of every seated player.
func (s Snapshot) SessionIDs() []string {
	ids := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		ids = append(ids, p.SessionID)
	}
	return ids
}

// Summary is the lobby listing entry for a room.
type Summary struct {
	Name        string `json:"name"`
	Players     int    `json:"players"`
	Capacity    int    `json:"capacity"`
	State       State  `json:"state"`
	HasPassword bool   `json:"hasPassword"`
}

func (r *Room) indexOf(sessionID string) int {
	for i, p := range r.players {
		if p.SessionID == sessionID {
			return i
		}
	}
	return -1
}

func (r *Room) snapshotLocked() Snapshot {
	snap := Snapshot{
		Name:          r.name,
		HasPassword:   r.password != "",
		Players:       append([]Player(nil), r.players...),
		State:         r.state,
		MaxTokenStack: r.maxTokenStack,
		CreatedAt:     r.createdAt,
	}
	if i := r.indexOf(r.owner); i >= 0 {
		owner := r.players[i]
		snap.Owner = &owner
	}
	if r.pool != nil {
		snap.Pool = r.pool.Snapshot()
		snap.Holdings = make(map[string]Tokens, len(r.holdings))
		for sid, held := range r.holdings {
			snap.Holdings[sid] = held.Clone()
		}
	}
	return snap
}

func (r *Room) summaryLocked() Summary {
	return Summary{
		Name:        r.name,
		Players:     len(r.players),
		Capacity:    Capacity,
		State:       r.state,
		HasPassword: r.password != "",
	}
}
