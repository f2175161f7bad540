package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mesa-pos/api/internal/auth"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // access is checked via JWT
	},
}

// SnapshotFunc returns the events that bring a fresh subscriber up to date
// for a tenant, or a single table when table > 0.
type SnapshotFunc func(ctx context.Context, tenantID uuid.UUID, table int32) ([]Event, error)

// Client is a single subscriber. conn is nil for in-process subscribers.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	tenantID uuid.UUID
	table    int32
	send     chan []byte
}

func (c *Client) wants(tableID *int32) bool {
	return c.table == 0 || tableID == nil || *tableID == c.table
}

// ReadPump only detects disconnects; floor clients never send messages.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("tenant_id", c.tenantID).Warn("websocket read failed")
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection. Each
// message goes out as its own frame so clients can parse frames as JSON.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS handles WebSocket requests from floor clients.
// Endpoint: WS /ws/tenants/{tid}/tables?token=JWT[&table=N]
func ServeWS(hub *Hub, jwtSecret string, snapshot SnapshotFunc, w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		http.Error(w, "invalid tenant id", http.StatusBadRequest)
		return
	}
	if claims.TenantID != tenantID {
		http.Error(w, "tenant access denied", http.StatusForbidden)
		return
	}

	var table int32
	if s := r.URL.Query().Get("table"); s != "" {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil || n <= 0 {
			http.Error(w, "invalid table", http.StatusBadRequest)
			return
		}
		table = int32(n)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		tenantID: tenantID,
		table:    table,
		send:     make(chan []byte, 256),
	}

	// Register before taking the snapshot so no change between the two is
	// lost; broadcasts queue in client.send until WritePump starts.
	if !hub.add(client) {
		conn.Close()
		return
	}
	if snapshot != nil {
		if err := client.writeSnapshot(r.Context(), snapshot); err != nil {
			logrus.WithError(err).WithField("tenant_id", tenantID).Warn("websocket snapshot failed")
			hub.remove(client)
			conn.Close()
			return
		}
	}

	go client.WritePump()
	go client.ReadPump()
}

// writeSnapshot writes directly to the connection. It must run before
// WritePump starts, as gorilla connections allow one writer at a time.
func (c *Client) writeSnapshot(ctx context.Context, snapshot SnapshotFunc) error {
	events, err := snapshot(ctx, c.tenantID, c.table)
	if err != nil {
		return err
	}
	for _, ev := range events {
		msg, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
	return nil
}
