// Package room provides the shared, in-memory room registry for the gem table
// server.
//
// The package implements:
//   - Room creation, join and leave with a fixed capacity of four players
//   - Ownership that always points at a seated player
//   - Game start with a player-count dependent token pool
//   - Token bookkeeping between the pool and player holdings
//   - Reclamation of rooms that stayed empty
//
// Concurrency:
//
// The Store keeps a short-lived lock around its room map and session index.
// Every room-scoped mutation runs under that room's own mutex, so activity in
// one room never serializes against another. Reads return snapshot copies
// that callers may keep after the lock is released.
//
// Usage:
//
//	store := room.NewStore()
//	owner := room.Player{Name: "ada", SessionID: connID}
//	if _, err := store.CreateRoom("lobby-1", "", &owner); err != nil {
//		return err
//	}
//	snap, err := store.JoinRoom("lobby-1", "", room.Player{Name: "bob", SessionID: otherID})
package room
