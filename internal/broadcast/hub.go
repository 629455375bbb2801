package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/silentsos/silentsos/internal/logging"
	"github.com/silentsos/silentsos/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// client serialises writes to one connection. gorilla/websocket allows a
// single concurrent writer only, and pings race with broadcasts otherwise.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.conn.WriteMessage(messageType, data)
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.conn.WriteJSON(v)
}

// Hub tracks websocket subscribers by group.
type Hub struct {
	mu      sync.RWMutex
	groups  map[string]map[*client]struct{}
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		groups:  make(map[string]map[*client]struct{}),
		metrics: m,
		log:     logging.For("broadcast"),
	}
}

func (h *Hub) Name() string {
	return "websocket"
}

func (h *Hub) register(group string, conn *websocket.Conn) *client {
	c := &client{conn: conn}

	h.mu.Lock()
	if h.groups[group] == nil {
		h.groups[group] = make(map[*client]struct{})
	}
	h.groups[group][c] = struct{}{}
	h.mu.Unlock()

	h.metrics.WebsocketConnected()

	return c
}

func (h *Hub) unregister(group string, c *client) {
	h.mu.Lock()
	clients := h.groups[group]
	_, registered := clients[c]
	if registered {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.groups, group)
		}
	}
	h.mu.Unlock()

	if registered {
		h.metrics.WebsocketDisconnected()
	}

	c.conn.Close()
}

// Clients returns how many subscribers group currently has.
func (h *Hub) Clients(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.groups[group])
}

// Broadcast sends v as JSON to every subscriber of group. Subscribers whose
// write fails are dropped. It returns how many subscribers received v.
func (h *Hub) Broadcast(ctx context.Context, group string, v any) int {
	h.mu.RLock()
	clients, exists := h.groups[group]
	if !exists || len(clients) == 0 {
		h.mu.RUnlock()
		return 0
	}

	// Copy so the lock is not held while writing.
	clientsCopy := make([]*client, 0, len(clients))
	for c := range clients {
		clientsCopy = append(clientsCopy, c)
	}
	h.mu.RUnlock()

	delivered := 0

	for _, c := range clientsCopy {
		if ctx.Err() != nil {
			break
		}

		if err := c.writeJSON(v); err != nil {
			h.log.Warn("dropping websocket subscriber after failed write", "group", group, "error", err)
			h.unregister(group, c)
			continue
		}

		delivered++
	}

	return delivered
}

// Publish sends event to the alerts group.
func (h *Hub) Publish(ctx context.Context, event AlertEvent) error {
	delivered := h.Broadcast(ctx, AlertsGroup, map[string]any{
		"type":  MessageTypeSendAlert,
		"alert": event,
	})

	h.log.Debug("alert broadcast", "alert_id", event.ID, "subscribers", delivered)

	return ctx.Err()
}

// Serve registers conn in group and blocks until the connection closes,
// keeping it alive with pings. Messages sent by the client are discarded.
func (h *Hub) Serve(conn *websocket.Conn, group string) {
	c := h.register(group, conn)
	defer h.unregister(group, c)

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.log.Warn("failed to set initial read deadline", "error", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := c.writeJSON(map[string]string{
		"type":    "connected",
		"message": "WebSocket connection established",
		"group":   group,
	}); err != nil {
		h.log.Warn("failed to send welcome message", "error", err)
		return
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, nil); err != nil {
					h.log.Debug("ping failed", "group", group, "error", err)
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket error", "group", group, "error", err)
			}
			return
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*client
	for _, clients := range h.groups {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		c.conn.Close()
	}
}
