// Package dashboard pushes live application statistics to staff browsers
// over WebSocket.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"gcx-supplier-go/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 8
)

const (
	MessageDashboardData    = "dashboard_data"
	MessageDashboardUpdated = "dashboard_updated"
	requestDashboardData    = "get_dashboard_data"
)

type envelope struct {
	Type string    `json:"type"`
	Data *Snapshot `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	db       *gorm.DB
	logger   *zap.Logger
	now      func() time.Time
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(db *gorm.DB, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		db:      db,
		logger:  logger.Named("dashboard"),
		now:     time.Now,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Snapshot returns the current figures for the HTTP stats endpoint.
func (h *Hub) Snapshot(ctx context.Context) (*Snapshot, error) {
	return BuildSnapshot(ctx, h.db, h.now())
}

// ApplicationChanged rebroadcasts the dashboard to every connected client.
func (h *Hub) ApplicationChanged(ctx context.Context, app models.SupplierApplication) {
	if h.Len() == 0 {
		return
	}
	snap, err := h.Snapshot(ctx)
	if err != nil {
		h.logger.Warn("build dashboard snapshot", zap.Uint("application_id", app.ID), zap.Error(err))
		return
	}
	h.broadcast(envelope{Type: MessageDashboardUpdated, Data: snap})
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg envelope) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode dashboard message", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow reader; drop it rather than stall the broadcaster.
			h.logger.Warn("dashboard client too slow, disconnecting")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("dashboard client connected", zap.Int("clients", n))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams dashboard messages until the
// client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)

	go h.writePump(c)
	h.reply(r.Context(), c)
	h.readPump(r.Context(), c)
}

func (h *Hub) reply(ctx context.Context, c *client) {
	snap, err := h.Snapshot(ctx)
	if err != nil {
		h.logger.Warn("build dashboard snapshot", zap.Error(err))
		return
	}
	payload, err := json.Marshal(envelope{Type: MessageDashboardData, Data: snap})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		select {
		case c.send <- payload:
		default:
		}
	}
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var req struct {
			Type string `json:"type"`
		}
		if err := c.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("dashboard client read failed", zap.Error(err))
			}
			return
		}
		if req.Type == requestDashboardData {
			h.reply(ctx, c)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
