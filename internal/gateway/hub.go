package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"wagerchess/internal/obslog"
	"wagerchess/pkg/wagerdto"

	"go.uber.org/zap"
)

// client is one connected user. Writes are serialized through mu; nhooyr
// allows a single concurrent writer per connection.
type client struct {
	userID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (c *client) send(ctx context.Context, evtType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(wctx, c.conn, wagerdto.Envelope{Type: evtType, Payload: raw})
}

// Hub indexes live connections by user id. Session broadcast resolves the
// participant set from a session snapshot, so the hub itself stays dumb.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*client
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*client)}
}

// Add registers a connection, displacing any previous connection for the
// same user.
func (h *Hub) Add(userID string, conn *websocket.Conn) *client {
	c := &client{userID: userID, conn: conn}
	h.mu.Lock()
	prev := h.conns[userID]
	h.conns[userID] = c
	h.mu.Unlock()
	if prev != nil && prev.conn != nil {
		_ = prev.conn.Close(websocket.StatusPolicyViolation, "superseded by new connection")
	}
	return c
}

// Remove drops the mapping if it still points at c. It reports whether the
// user is now unmapped; a false return means a newer connection displaced c
// and the user is still connected.
func (h *Hub) Remove(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.conns[c.userID]; ok && cur == c {
		delete(h.conns, c.userID)
		return true
	}
	return false
}

// SendToUser delivers one event to a user's connection, if connected.
func (h *Hub) SendToUser(ctx context.Context, userID, evtType string, payload any) {
	h.mu.RLock()
	c := h.conns[userID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	if err := c.send(ctx, evtType, payload); err != nil {
		obslog.L().Debug("send_failed",
			zap.String("user_id", userID),
			zap.String("event", evtType),
			zap.Error(err),
		)
	}
}

// SendToUsers fans one event out to several users.
func (h *Hub) SendToUsers(ctx context.Context, userIDs []string, evtType string, payload any) {
	for _, id := range userIDs {
		h.SendToUser(ctx, id, evtType, payload)
	}
}
