// Package api provides the HTTP surface of the gem table server.
//
// The api package implements:
//   - Read-only REST endpoints for inspecting rooms
//   - Server statistics and the list of registered commands
//   - The WebSocket upgrade endpoint
//
// Endpoints:
//
//   - GET /healthz - Liveness check
//   - GET /api/rooms - List rooms (?state=lobby|in_progress, ?open=true, ?limit=N)
//   - GET /api/rooms/{name} - Get a room snapshot
//   - GET /api/stats - Room and connection counters
//   - GET /api/commands - Registered commands and their payload fields
//   - GET /ws - WebSocket upgrade
//
// All game mutations happen over the WebSocket; the REST API never changes
// room state.
package api
