// Package client implements the consumer side of the messaging socket:
// one shared transport, automatic reconnection with exponential backoff,
// and a subscribe/unsubscribe interface so independent views (a
// conversation list, an open chat) can each observe inbound envelopes
// without clobbering one another.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketchat/internal/wire"
)

// State of the controller's connection machine.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

var (
	// ErrClosed is returned after Close; a closed controller never dials
	// again.
	ErrClosed = errors.New("client: controller closed")
	// ErrNotConnected is returned by Send while the transport is down.
	ErrNotConnected = errors.New("client: not connected")
)

// Conn is the slice of *websocket.Conn the controller uses; injectable
// for tests.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	Close() error
}

// DialFunc opens one transport attempt.
type DialFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

func defaultDial(ctx context.Context, url string, header http.Header) (Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return c, nil
}

const (
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 30 * time.Second
)

// Option configures a Controller.
type Option func(*Controller)

// WithDialer replaces the transport dialer.
func WithDialer(dial DialFunc) Option {
	return func(c *Controller) { c.dial = dial }
}

// WithBackoff overrides the reconnect delays.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Controller) {
		c.baseDelay = base
		c.maxDelay = max
	}
}

// WithHeader sets headers sent on every dial (typically Authorization).
func WithHeader(h http.Header) Option {
	return func(c *Controller) { c.header = h }
}

// WithLogger sets the controller's logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// Controller owns exactly one underlying transport and hands every
// inbound envelope to all current subscribers.
type Controller struct {
	url    string
	header http.Header
	dial   DialFunc
	log    *slog.Logger

	baseDelay time.Duration
	maxDelay  time.Duration

	mu       sync.Mutex
	state    State
	attempts int
	conn     Conn
	timer    *time.Timer
	closed   bool
	subs     map[int]func(wire.Envelope)
	nextSub  int
}

// New creates a controller for the given ws:// or wss:// URL. Nothing
// connects until Connect is called.
func New(url string, opts ...Option) *Controller {
	c := &Controller{
		url:       url,
		dial:      defaultDial,
		log:       slog.Default(),
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
		subs:      make(map[int]func(wire.Envelope)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts the connection machine. Failed attempts reschedule
// themselves with exponential backoff until Close.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state != StateDisconnected {
		return nil
	}
	c.state = StateConnecting
	go c.connect()
	return nil
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a consumer for all inbound envelopes and returns
// its handle. Callbacks run on the read goroutine; keep them light.
func (c *Controller) Subscribe(fn func(wire.Envelope)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	c.subs[c.nextSub] = fn
	return c.nextSub
}

// Unsubscribe removes a consumer. Other subscribers are unaffected.
func (c *Controller) Unsubscribe(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

// Send writes an envelope on the live transport. Sends while
// disconnected fail fast; callers rely on the REST surface or retry
// after reconnection.
func (c *Controller) Send(env wire.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()
	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSON(env)
}

// Close tears the controller down: any pending reconnect timer is
// cancelled and the transport closed. The controller cannot be reused.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.state = StateDisconnected
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Controller) connect() {
	conn, err := c.dial(context.Background(), c.url, c.header)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.log.Warn("dial failed", "url", c.url, "err", err)
		c.state = StateDisconnected
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.mu.Unlock()

	go c.readLoop(conn)
}

func (c *Controller) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn)
			return
		}
		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn("bad envelope", "err", err)
			continue
		}

		c.mu.Lock()
		fns := make([]func(wire.Envelope), 0, len(c.subs))
		for _, fn := range c.subs {
			fns = append(fns, fn)
		}
		c.mu.Unlock()

		for _, fn := range fns {
			fn(env)
		}
	}
}

func (c *Controller) handleDrop(conn Conn) {
	_ = conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn != conn {
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer. Callers hold c.mu.
func (c *Controller) scheduleReconnectLocked() {
	delay := c.nextDelay()
	c.attempts++
	c.log.Info("reconnect scheduled", "delay", delay, "attempt", c.attempts)
	c.timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.closed || c.state != StateDisconnected {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()
		c.connect()
	})
}

// nextDelay doubles from the base per consecutive failure, capped at the
// maximum. The counter resets when a connection succeeds.
func (c *Controller) nextDelay() time.Duration {
	delay := c.baseDelay << c.attempts
	if delay > c.maxDelay || delay <= 0 {
		return c.maxDelay
	}
	return delay
}
