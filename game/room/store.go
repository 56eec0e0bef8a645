package room

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Store is the process-wide registry of rooms.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	// seats maps a session ID to the key of the room it sits in.
	seats map[string]string

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for room timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		rooms: make(map[string]*Room),
		seats: make(map[string]string),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LeaveResult describes the outcome of a successful leave.
type LeaveResult struct {
	Player       Player
	Room         Snapshot
	OwnerChanged bool
	Empty        bool
}

func roomKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validPlayer(p Player) bool {
	return strings.TrimSpace(p.Name) != "" && p.SessionID != ""
}

// CreateRoom registers a new room. When owner is non-nil it becomes the first
// member and the room's owner.
func (s *Store) CreateRoom(name, password string, owner *Player) (Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxRoomNameLength {
		return Snapshot{}, ErrInvalidRoomName
	}
	if owner != nil && !validPlayer(*owner) {
		return Snapshot{}, ErrInvalidPlayer
	}
	key := roomKey(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[key]; exists {
		return Snapshot{}, ErrRoomExists
	}

	now := s.now()
	r := &Room{
		key:        key,
		name:       name,
		password:   password,
		state:      StateLobby,
		createdAt:  now,
		emptySince: now,
	}
	if owner != nil {
		if other, seated := s.seats[owner.SessionID]; seated {
			if held, ok := s.rooms[other]; ok {
				other = held.name
			}
			return Snapshot{}, &MembershipError{Room: name, SessionID: owner.SessionID, Elsewhere: other}
		}
		r.players = []Player{*owner}
		r.owner = owner.SessionID
		r.emptySince = time.Time{}
		s.seats[owner.SessionID] = key
	}
	s.rooms[key] = r

	// r is not reachable by other goroutines until s.mu is released.
	return r.snapshotLocked(), nil
}

func (s *Store) lookup(name string) (*Room, error) {
	s.mu.RLock()
	r, ok := s.rooms[roomKey(name)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// claimSeat records that sessionID sits in key. It returns the name of the
// room already holding the session when the claim fails. Callers hold the
// room lock; the lock order is room then store.
func (s *Store) claimSeat(sessionID, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if other, seated := s.seats[sessionID]; seated {
		if r, ok := s.rooms[other]; ok {
			return r.name, false
		}
		return other, false
	}
	s.seats[sessionID] = key
	return "", true
}

func (s *Store) releaseSeat(sessionID, key string) {
	s.mu.Lock()
	if s.seats[sessionID] == key {
		delete(s.seats, sessionID)
	}
	s.mu.Unlock()
}

// JoinRoom seats p in the named room.
func (s *Store) JoinRoom(name, password string, p Player) (Snapshot, error) {
	if !validPlayer(p) {
		return Snapshot{}, ErrInvalidPlayer
	}
	r, err := s.lookup(name)
	if err != nil {
		return Snapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removed {
		return Snapshot{}, ErrRoomNotFound
	}
	if r.password != "" && password != r.password {
		return Snapshot{}, ErrWrongPassword
	}
	if r.indexOf(p.SessionID) >= 0 {
		return Snapshot{}, &MembershipError{Room: r.name, SessionID: p.SessionID, Member: true}
	}
	if r.state == StateInProgress {
		return Snapshot{}, ErrGameInProgress
	}
	if len(r.players) >= Capacity {
		return Snapshot{}, &CapacityError{Room: r.name, Capacity: Capacity}
	}
	if other, ok := s.claimSeat(p.SessionID, r.key); !ok {
		return Snapshot{}, &MembershipError{Room: r.name, SessionID: p.SessionID, Elsewhere: other}
	}

	r.players = append(r.players, p)
	if r.owner == "" {
		r.owner = p.SessionID
	}
	r.emptySince = time.Time{}
	return r.snapshotLocked(), nil
}

// LeaveRoom removes the session from the named room. Tokens it held go back
// to the pool, and ownership passes to the longest-seated remaining player.
func (s *Store) LeaveRoom(name, sessionID string) (LeaveResult, error) {
	r, err := s.lookup(name)
	if err != nil {
		return LeaveResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removed {
		return LeaveResult{}, ErrRoomNotFound
	}
	i := r.indexOf(sessionID)
	if i < 0 {
		return LeaveResult{}, &MembershipError{Room: r.name, SessionID: sessionID}
	}

	leaving := r.players[i]
	r.players = append(r.players[:i], r.players[i+1:]...)
	if held, ok := r.holdings[sessionID]; ok {
		if r.pool != nil {
			// Holdings always came out of this pool, so the caps hold.
			_ = r.pool.Give(held)
		}
		delete(r.holdings, sessionID)
	}
	s.releaseSeat(sessionID, r.key)

	res := LeaveResult{Player: leaving}
	if r.owner == sessionID {
		r.owner = ""
		if len(r.players) > 0 {
			r.owner = r.players[0].SessionID
			res.OwnerChanged = true
		}
	}
	if len(r.players) == 0 {
		r.emptySince = s.now()
		res.Empty = true
	}
	res.Room = r.snapshotLocked()
	return res, nil
}

// LeaveAll removes the session from whichever room it sits in. The boolean is
// false when the session was not seated anywhere.
func (s *Store) LeaveAll(sessionID string) (LeaveResult, bool, error) {
	s.mu.RLock()
	key, seated := s.seats[sessionID]
	var name string
	if seated {
		if r, ok := s.rooms[key]; ok {
			name = r.name
		}
	}
	s.mu.RUnlock()

	if !seated || name == "" {
		return LeaveResult{}, false, nil
	}
	res, err := s.LeaveRoom(name, sessionID)
	if err != nil {
		return LeaveResult{}, false, err
	}
	return res, true, nil
}

// StartGame moves the room into play. Only the owner may start it. The
// per-color pool size is fixed from the player count; membership is left
// untouched on failure.
func (s *Store) StartGame(name, sessionID string) (Snapshot, error) {
	r, err := s.lookup(name)
	if err != nil {
		return Snapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removed {
		return Snapshot{}, ErrRoomNotFound
	}
	if r.indexOf(sessionID) < 0 {
		return Snapshot{}, &MembershipError{Room: r.name, SessionID: sessionID}
	}
	if r.owner != sessionID {
		return Snapshot{}, ErrNotOwner
	}
	if r.state == StateInProgress {
		return Snapshot{}, ErrGameInProgress
	}

	pool, err := NewPool(len(r.players))
	if err != nil {
		return Snapshot{}, err
	}
	r.pool = pool
	r.maxTokenStack = pool.Cap(Emerald)
	r.holdings = make(map[string]Tokens, len(r.players))
	for _, p := range r.players {
		r.holdings[p.SessionID] = make(Tokens)
	}
	r.state = StateInProgress
	return r.snapshotLocked(), nil
}

// TakeTokens moves tokens from the pool to the player's holdings. Gold cannot
// be taken directly and a single take is limited to MaxTokensPerTake tokens.
func (s *Store) TakeTokens(name, sessionID string, req Tokens) (Snapshot, error) {
	if err := req.validate(); err != nil {
		return Snapshot{}, err
	}
	if req[Gold] > 0 {
		return Snapshot{}, &TokenError{Color: Gold, Reason: "gold cannot be taken directly"}
	}
	if req.Total() > MaxTokensPerTake {
		return Snapshot{}, &TokenError{Reason: "at most 3 tokens per take"}
	}

	return s.withGame(name, sessionID, func(r *Room) error {
		if err := r.pool.Take(req); err != nil {
			return err
		}
		held := r.holdings[sessionID]
		for c, n := range req {
			held[c] += n
		}
		return nil
	})
}

// ReturnTokens moves tokens from the player's holdings back to the pool.
func (s *Store) ReturnTokens(name, sessionID string, req Tokens) (Snapshot, error) {
	if err := req.validate(); err != nil {
		return Snapshot{}, err
	}

	return s.withGame(name, sessionID, func(r *Room) error {
		held := r.holdings[sessionID]
		for c, n := range req {
			if held[c] < n {
				return &TokenError{Color: c, Reason: "not enough tokens held"}
			}
		}
		if err := r.pool.Give(req); err != nil {
			return err
		}
		for c, n := range req {
			held[c] -= n
			if held[c] == 0 {
				delete(held, c)
			}
		}
		return nil
	})
}

func (s *Store) withGame(name, sessionID string, fn func(r *Room) error) (Snapshot, error) {
	r, err := s.lookup(name)
	if err != nil {
		return Snapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removed {
		return Snapshot{}, ErrRoomNotFound
	}
	if r.indexOf(sessionID) < 0 {
		return Snapshot{}, &MembershipError{Room: r.name, SessionID: sessionID}
	}
	if r.state != StateInProgress {
		return Snapshot{}, ErrGameNotStarted
	}
	if r.holdings[sessionID] == nil {
		r.holdings[sessionID] = make(Tokens)
	}
	if err := fn(r); err != nil {
		return Snapshot{}, err
	}
	return r.snapshotLocked(), nil
}

// Snapshot returns a copy of the named room.
func (s *Store) Snapshot(name string) (Snapshot, error) {
	r, err := s.lookup(name)
	if err != nil {
		return Snapshot{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removed {
		return Snapshot{}, ErrRoomNotFound
	}
	return r.snapshotLocked(), nil
}

// RoomOf returns the name of the room the session sits in.
func (s *Store) RoomOf(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.seats[sessionID]
	if !ok {
		return "", false
	}
	r, ok := s.rooms[key]
	if !ok {
		return "", false
	}
	return r.name, true
}

// List returns a summary of every room, sorted by name.
func (s *Store) List() []Summary {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	out := make([]Summary, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		if !r.removed {
			out = append(out, r.summaryLocked())
		}
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of rooms.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// ReapEmpty removes rooms that have had no players for longer than olderThan
// and returns how many were removed.
func (s *Store) ReapEmpty(olderThan time.Duration) int {
	cutoff := s.now().Add(-olderThan)

	s.mu.RLock()
	candidates := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		candidates = append(candidates, r)
	}
	s.mu.RUnlock()

	removed := 0
	for _, r := range candidates {
		r.mu.Lock()
		reap := !r.removed && len(r.players) == 0 && !r.emptySince.IsZero() && !r.emptySince.After(cutoff)
		if reap {
			r.removed = true
		}
		r.mu.Unlock()
		if !reap {
			continue
		}

		s.mu.Lock()
		if s.rooms[r.key] == r {
			delete(s.rooms, r.key)
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}
