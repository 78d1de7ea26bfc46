// Package realtime carries server-pushed events over websocket
// connections.
package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendBuffer   = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 4096
)

var (
	// ErrSlowConsumer is returned when a client's send buffer is full.
	ErrSlowConsumer = errors.New("client send buffer full")
	// ErrClosed is returned when sending to a closed client.
	ErrClosed = errors.New("client closed")
)

// Envelope is the wire format of every pushed event.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is one user's websocket connection.
type Client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient wraps conn for userID.
func NewClient(conn *websocket.Conn, userID string, logger zerolog.Logger) *Client {
	return &Client{
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		logger: logger.With().Str("component", "realtime").Str("user_id", userID).Logger(),
	}
}

// UserID returns the user the connection belongs to.
func (c *Client) UserID() string {
	return c.userID
}

// Send queues event for writing. It never blocks.
func (c *Client) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(Envelope{Type: event, Data: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- raw:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close stops the write pump. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump consumes inbound frames until the connection fails. The channel
// is push-only, so frame contents are discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("websocket closed")
			}
			return
		}
	}
}

// WritePump writes queued events and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
