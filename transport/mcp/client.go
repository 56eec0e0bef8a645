package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/gemtable/api"
	"github.com/wricardo/gemtable/game/room"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Gem Table",
		Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Gem Table - MCP Interface

This is a thin client that proxies all requests to the REST API server of a
running gem table game server. All tools are read-only.

AVAILABLE TOOLS:
- list_rooms: List rooms (set open_only to see rooms that can still be joined)
- get_room: Show one room, its owner, players and token pool
- server_stats: Room, player and connection counters
- list_commands: WebSocket commands and their payload fields`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List game rooms",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"open_only": map[string]any{
					"type":        "boolean",
					"description": "Only rooms in the lobby with a free seat",
				},
				"state": map[string]any{
					"type":        "string",
					"description": "Filter by state: lobby or in_progress",
				},
			},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get details of a specific room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"room_name": map[string]any{
					"type":        "string",
					"description": "Room name (case-insensitive)",
				},
			},
			Required: []string{"room_name"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get server statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleServerStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_commands",
		Description: "List the WebSocket commands the server accepts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListCommands)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			if msg, ok := errResp["error"]; ok {
				return fmt.Errorf("%s", msg)
			}
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]any {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return map[string]any{}
	}
	return args
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	query := url.Values{}
	if open, _ := args["open_only"].(bool); open {
		query.Set("open", "true")
	}
	if state, _ := args["state"].(string); state != "" {
		query.Set("state", state)
	}

	path := "/api/rooms"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var response api.RoomsResponse
	if err := c.apiCall(ctx, http.MethodGet, path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRooms(response)), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := arguments(request)["room_name"].(string)
	if strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("room_name is required"), nil
	}

	var snap room.Snapshot
	if err := c.apiCall(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(name), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRoom(snap)), nil
}

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats api.StatsResponse
	if err := c.apiCall(ctx, http.MethodGet, "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rooms: %d (%d games running)\n", stats.Rooms, stats.GamesRunning)
	fmt.Fprintf(&b, "Players seated: %d\n", stats.Players)
	fmt.Fprintf(&b, "Connections: %d open, %d total\n", stats.Transport.Connections, stats.Transport.ConnectionsTotal)
	fmt.Fprintf(&b, "Messages: %d in, %d out, %d dropped\n", stats.Transport.MessagesIn, stats.Transport.MessagesOut, stats.Transport.Dropped)
	fmt.Fprintf(&b, "Commands registered: %d\n", stats.Commands)
	fmt.Fprintf(&b, "Uptime: %s\n", time.Duration(stats.UptimeSeconds)*time.Second)
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleListCommands(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Commands []api.CommandInfo `json:"commands"`
	}
	if err := c.apiCall(ctx, http.MethodGet, "/api/commands", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Commands (%d):\n\n", len(response.Commands))
	for _, cmd := range response.Commands {
		fmt.Fprintf(&b, "- %s", cmd.Name)
		if len(cmd.Required) > 0 {
			fmt.Fprintf(&b, " required: %s", strings.Join(cmd.Required, ", "))
		}
		if len(cmd.Optional) > 0 {
			fmt.Fprintf(&b, " optional: %s", strings.Join(cmd.Optional, ", "))
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func formatRooms(resp api.RoomsResponse) string {
	if resp.Count == 0 {
		return fmt.Sprintf("No matching rooms (%d total).\n", resp.Total)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Rooms (%d of %d):\n\n", resp.Count, resp.Total)
	for _, r := range resp.Rooms {
		lock := ""
		if r.HasPassword {
			lock = " [password]"
		}
		fmt.Fprintf(&b, "- %s: %d/%d players, %s%s\n", r.Name, r.Players, r.Capacity, r.State, lock)
	}
	return b.String()
}

func formatRoom(snap room.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room: %s\n", snap.Name)
	fmt.Fprintf(&b, "State: %s\n", snap.State)
	if snap.Owner != nil {
		fmt.Fprintf(&b, "Owner: %s\n", snap.Owner.Name)
	}
	fmt.Fprintf(&b, "Players (%d/%d):\n", len(snap.Players), room.Capacity)
	for _, p := range snap.Players {
		fmt.Fprintf(&b, "  - %s (%s)\n", p.Name, p.SessionID)
	}
	if snap.State == room.StateInProgress {
		fmt.Fprintf(&b, "Max token stack: %d\n", snap.MaxTokenStack)
		fmt.Fprintf(&b, "Pool: %s\n", formatTokens(snap.Pool))
		ids := make([]string, 0, len(snap.Holdings))
		for id := range snap.Holdings {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "Held by %s: %s\n", id, formatTokens(snap.Holdings[id]))
		}
	}
	return b.String()
}

func formatTokens(t room.Tokens) string {
	parts := make([]string, 0, len(room.Colors))
	for _, c := range room.Colors {
		parts = append(parts, fmt.Sprintf("%s=%d", c, t[c]))
	}
	return strings.Join(parts, " ")
}
