package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// sock is the slice of *websocket.Conn the registry needs. Kept narrow
// so tests can register stub connections.
type sock interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

var errConnClosed = errors.New("connection closed")

// Connection is one live transport session belonging to one
// authenticated user. Outbound writes go through a buffered channel and
// a single write pump, so fan-out never blocks on a slow client.
type Connection struct {
	ID     string
	UserID int64

	ws   sock
	send chan []byte
	once sync.Once
	done chan struct{}

	mu       sync.Mutex
	lastPong time.Time
}

// NewConnection wraps an upgraded socket for the given user.
func NewConnection(userID int64, ws sock) *Connection {
	c := &Connection{
		ID:       uuid.NewString(),
		UserID:   userID,
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		lastPong: time.Now(),
	}
	ws.SetPongHandler(func(string) error {
		c.markPong()
		return nil
	})
	return c
}

func (c *Connection) start() {
	go c.writePump()
}

// Send enqueues payload for delivery. A full buffer means the client is
// not keeping up; the connection is closed to keep backpressure bounded.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("send buffer exceeded")
	}
}

// Ping writes a protocol-level ping control frame.
func (c *Connection) Ping() error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Alive reports whether a pong arrived within the given window.
func (c *Connection) Alive(window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastPong) <= window
}

func (c *Connection) markPong() {
	c.mu.Lock()
	c.lastPong = time.Now()
	c.mu.Unlock()
}

// Close terminates the connection and stops the write pump. Safe to call
// more than once.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		}
	}
}
