package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/gemtable/dispatch"
)

// Client is one WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	id     string
	remote string

	send chan []byte
	done chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// lastPong is the unix nano time of the last pong.
	lastPong atomic.Int64
}

// ID returns the connection ID.
func (c *Client) ID() string { return c.id }

// LastPong returns when the peer last answered a ping.
func (c *Client) LastPong() time.Time {
	return time.Unix(0, c.lastPong.Load())
}

func (c *Client) touch(t time.Time) {
	c.lastPong.Store(t.UnixNano())
}

// Close stops the client's pumps and closes the socket. Calling it again is
// a no-op.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		// Unblock a read pump waiting on the socket.
		c.conn.SetReadDeadline(time.Now())
	})
	return nil
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) enqueue(data []byte) error {
	if c.closed() {
		return dispatch.ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return dispatch.ErrConnectionClosed
	default:
		c.hub.log.Warn().Str("conn", c.id).Msg("send buffer full, closing client")
		c.Close()
		return ErrSendBufferFull
	}
}

// readPump hands inbound frames to the hub's handler one at a time
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.touch(time.Now())
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) && !c.closed() {
				c.hub.log.Debug().Err(err).Str("conn", c.id).Msg("websocket read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.hub.messagesIn.Add(1)
		if c.hub.handler != nil {
			c.hub.handler.Dispatch(c.ctx, c.id, data)
		}
	}
}

// writePump pumps queued messages to the WebSocket connection and pings the
// peer
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
