// Package websocket provides the WebSocket transport for the gem table server.
//
// The websocket package implements:
//   - Connection upgrade and per-connection read and write pumps
//   - Heartbeat pings and pong timestamps consumed by the health monitor
//   - Delivery of replies and broadcasts by connection ID
//   - Idempotent connection close
//
// Architecture:
//
// A central Hub owns every connection. Registration and removal go through
// the hub's event loop, while lookups for outbound messages use a read lock
// so delivery never waits on the loop. Each client runs two goroutines: the
// read pump hands every text frame to the FrameHandler in arrival order, and
// the write pump drains the send queue and pings the peer.
//
// Message Protocol:
//
// Every text frame carries exactly one JSON envelope. Heartbeats are
// WebSocket ping and pong control frames outside the envelope.
//
// Usage:
//
//	hub := websocket.NewHub(websocket.Options{}, logger)
//	dispatcher := dispatch.New(reg, store, hub, logger)
//	hub.Bind(dispatcher)
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects and receives a connection ID
// 2. Connection registered with hub
// 3. Client sends envelopes, receives replies and broadcasts
// 4. Disconnection, or a close by the health monitor, triggers cleanup and
// the FrameHandler's Disconnect
package websocket
