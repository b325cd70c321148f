package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Registry tracks the live connections of every user and owns liveness
// checking. It is constructed once at process start and handed to the
// dispatcher and the presence relay; nothing reaches it through package
// state.
type Registry struct {
	log           *slog.Logger
	sweepInterval time.Duration
	pongWait      time.Duration

	mu    sync.RWMutex
	conns map[int64]map[string]*Connection
}

func NewRegistry(log *slog.Logger, sweepInterval, pongWait time.Duration) *Registry {
	return &Registry{
		log:           log,
		sweepInterval: sweepInterval,
		pongWait:      pongWait,
		conns:         make(map[int64]map[string]*Connection),
	}
}

// Register adds a connection to the user's set and starts its write
// pump. Other connections of the same user are left untouched.
func (r *Registry) Register(c *Connection) {
	r.mu.Lock()
	if r.conns[c.UserID] == nil {
		r.conns[c.UserID] = make(map[string]*Connection)
	}
	r.conns[c.UserID][c.ID] = c
	r.mu.Unlock()

	c.start()
	r.log.Debug("connection registered", "user_id", c.UserID, "conn_id", c.ID)
}

// Unregister removes a connection from the user's set. It does not close
// the connection; callers decide that.
func (r *Registry) Unregister(c *Connection) {
	r.mu.Lock()
	if conns, ok := r.conns[c.UserID]; ok {
		delete(conns, c.ID)
		if len(conns) == 0 {
			delete(r.conns, c.UserID)
		}
	}
	r.mu.Unlock()
}

// SendTo fans the payload out to every live connection of the user and
// returns how many accepted it. Connections that refuse the payload are
// dropped individually; the rest still get their copy.
func (r *Registry) SendTo(userID int64, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Error("marshal payload", "err", err)
		return 0
	}

	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.conns[userID]))
	for _, c := range r.conns[userID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if err := c.Send(data); err != nil {
			r.log.Warn("drop connection on failed send", "user_id", userID, "conn_id", c.ID, "err", err)
			r.Unregister(c)
			c.Close(websocket.CloseGoingAway, "send failed")
			continue
		}
		delivered++
	}
	return delivered
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// Run drives the periodic liveness sweep until ctx is cancelled, then
// closes every remaining connection.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep drops connections whose last pong is outside the window and
// pings the rest. Stale entries never accumulate: a connection either
// answers pings or gets forcibly unregistered here.
func (r *Registry) sweep() {
	r.mu.RLock()
	all := make([]*Connection, 0)
	for _, conns := range r.conns {
		for _, c := range conns {
			all = append(all, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range all {
		if !c.Alive(r.pongWait) {
			r.log.Info("closing stale connection", "user_id", c.UserID, "conn_id", c.ID)
			r.Unregister(c)
			c.Close(websocket.CloseGoingAway, "liveness timeout")
			continue
		}
		if err := c.Ping(); err != nil {
			r.log.Warn("ping failed", "user_id", c.UserID, "conn_id", c.ID, "err", err)
			r.Unregister(c)
			c.Close(websocket.CloseGoingAway, "ping failed")
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := make([]*Connection, 0)
	for _, conns := range r.conns {
		for _, c := range conns {
			all = append(all, c)
		}
	}
	r.conns = make(map[int64]map[string]*Connection)
	r.mu.Unlock()

	for _, c := range all {
		c.Close(websocket.CloseGoingAway, "server shutdown")
	}
}
