package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/gemtable/dispatch"
	"github.com/wricardo/gemtable/health"
	"github.com/wricardo/gemtable/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	defaultPingPeriod     = 10 * time.Second
	defaultMaxMessageSize = 8192
	defaultSendBuffer     = 256
)

// ErrSendBufferFull is returned when a slow client falls too far behind. The
// client is closed.
var ErrSendBufferFull = errors.New("send buffer full")

// FrameHandler consumes inbound frames.
type FrameHandler interface {
	Dispatch(ctx context.Context, connID string, raw []byte) dispatch.Outcome
	Disconnect(connID string)
}

// Options configures a Hub. Zero values fall back to defaults.
type Options struct {
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBufferSize int
	CheckOrigin    func(r *http.Request) bool
}

// Stats are cumulative transport counters.
type Stats struct {
	Connections      int   `json:"connections"`
	ConnectionsTotal int64 `json:"connectionsTotal"`
	MessagesIn       int64 `json:"messagesIn"`
	MessagesOut      int64 `json:"messagesOut"`
	Dropped          int64 `json:"dropped"`
}

// Hub maintains the set of active clients and routes outbound messages
type Hub struct {
	opts     Options
	upgrader websocket.Upgrader
	log      zerolog.Logger
	handler  FrameHandler

	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}

	connectionsTotal atomic.Int64
	messagesIn       atomic.Int64
	messagesOut      atomic.Int64
	dropped          atomic.Int64
}

// NewHub creates a new WebSocket hub
func NewHub(opts Options, log zerolog.Logger) *Hub {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPingPeriod
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = defaultSendBuffer
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Hub{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log:        log.With().Str("component", "websocket").Logger(),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
}

// Bind sets the handler that receives inbound frames. It must be called
// before Run.
func (h *Hub) Bind(handler FrameHandler) {
	h.handler = handler
}

// Run starts the hub's event loop. When ctx is done every client is closed
// and new connections are refused.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// ServeWS upgrades the request and starts the client's pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:    h,
		conn:   conn,
		id:     uuid.NewString(),
		remote: r.RemoteAddr,
		send:   make(chan []byte, h.opts.SendBufferSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	client.touch(time.Now())

	select {
	case h.register <- client:
	case <-h.stopped:
		client.Close()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Send delivers msg to one connection.
func (h *Hub) Send(connID string, msg protocol.Outbound) error {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		h.dropped.Add(1)
		return dispatch.ErrConnectionClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", msg.Type, err)
	}
	if err := client.enqueue(data); err != nil {
		h.dropped.Add(1)
		return err
	}
	h.messagesOut.Add(1)
	return nil
}

// Connections lists the open connections for the health monitor.
func (h *Hub) Connections() []health.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]health.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c)
	}
	return conns
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the transport counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Connections:      h.Count(),
		ConnectionsTotal: h.connectionsTotal.Load(),
		MessagesIn:       h.messagesIn.Load(),
		MessagesOut:      h.messagesOut.Load(),
		Dropped:          h.dropped.Load(),
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.connectionsTotal.Add(1)
	h.log.Info().Str("conn", client.id).Str("remote", client.remote).Int("clients", total).Msg("client connected")
}

// unregisterClient removes a client and releases whatever it held
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.id]
	if ok && current == client {
		delete(h.clients, client.id)
	}
	remaining := len(h.clients)
	h.mu.Unlock()

	client.Close()
	if !ok || current != client {
		return
	}
	if h.handler != nil {
		h.handler.Disconnect(client.id)
	}
	h.log.Info().Str("conn", client.id).Int("clients", remaining).Msg("client disconnected")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
		if h.handler != nil {
			h.handler.Disconnect(c.id)
		}
	}
	h.log.Info().Int("clients", len(clients)).Msg("hub stopped")
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
		c.Close()
	}
}
