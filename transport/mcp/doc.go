// Package mcp provides a Model Context Protocol server for operators of the
// gem table server.
//
// The mcp package implements:
//   - MCP tools that inspect a running server
//   - A thin client that proxies every tool call to the REST API
//
// MCP Tools:
//   - list_rooms: List rooms, optionally only those open for joining
//   - get_room: Show one room with its players and token pool
//   - server_stats: Room, player and connection counters
//   - list_commands: The WebSocket commands the server accepts
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
//
// The tools are read-only. Playing happens over the WebSocket.
package mcp
