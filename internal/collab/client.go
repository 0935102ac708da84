package collab

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // whole-document payloads, allow 1 MiB
	sendBuffer     = 64
)

// Session is the authenticated identity bound to a connection. It is
// resolved once during the authenticate handshake and never mutated.
type Session struct {
	UserID   string
	Username string
}

// Client wraps one websocket connection. Writes go through a buffered
// channel drained by the write pump so that fan-out never blocks on a slow
// peer; a full buffer drops the frame.
type Client struct {
	conn *websocket.Conn

	mu      sync.Mutex
	session *Session
	send    chan Envelope
	closed  bool
	hook    func(Envelope) // test sender, replaces the websocket
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan Envelope, sendBuffer),
	}
}

// SetSendHook replaces the websocket sender (used in tests).
func (c *Client) SetSendHook(fn func(Envelope)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Session returns the bound identity, or nil before authentication.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) bindSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// Send queues an outbound frame. Never blocks; frames to a stalled client
// are dropped. The channel send happens under the mutex so it can never
// race the close of the channel: a frame racing a teardown is dropped.
func (c *Client) Send(e Envelope) {
	c.mu.Lock()
	if c.hook != nil {
		hook := c.hook
		c.mu.Unlock()
		hook(e)
		return
	}
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- e:
	default:
		log.Printf("client send buffer full, dropping %s frame", e.Event)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump drains the send channel onto the wire. One goroutine per
// connection; exits when the client closes.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
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
