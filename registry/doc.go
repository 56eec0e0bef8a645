// Package registry maps command names to handler factories.
//
// Handlers are enumerated explicitly at start-up with Define, which ties a
// command name to a typed payload and a constructor. The registry validates
// each candidate, builds a name to factory table and defers handler
// construction to dispatch time: every inbound message gets a fresh handler
// bound to its connection, its message, a reply sink and the room store.
//
// Name collisions are resolved last-wins. Every override is logged at warn
// level and listed in the Report returned by Register.
package registry
