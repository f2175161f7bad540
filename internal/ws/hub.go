package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event represents a WebSocket message to be broadcast. TableID is nil for
// events that concern the whole tenant.
type Event struct {
	Type    string          `json:"type"`
	TableID *int32          `json:"table_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// tenantEvent is an internal struct for routing events to specific tenants
type tenantEvent struct {
	TenantID uuid.UUID
	Event    Event
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Clients are grouped into one room per tenant; a client may further narrow
// its room to a single table.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *tenantEvent

	// closed once Run returns so senders never block on a stopped hub
	done chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *tenantEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and blocks until ctx is canceled, at which
// point every client's send channel is closed.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.tenantID] == nil {
				h.rooms[client.tenantID] = make(map[*Client]bool)
			}
			h.rooms[client.tenantID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.TenantID] {
				if !client.wants(event.Event.TableID) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// slow consumer; it will miss no more than this snapshot
					// once it reconnects and receives a fresh one
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes client from its room and closes its send channel. Callers
// hold h.mu.
func (h *Hub) drop(client *Client) {
	clients, ok := h.rooms[client.tenantID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.tenantID)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	close(h.done)
	for tenantID, clients := range h.rooms {
		for client := range clients {
			close(client.send)
		}
		delete(h.rooms, tenantID)
	}
}

// BroadcastToTenant sends an event to every client subscribed to the tenant
// whose table filter matches. It is a no-op once the hub has stopped.
func (h *Hub) BroadcastToTenant(tenantID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &tenantEvent{TenantID: tenantID, Event: event}:
	case <-h.done:
	}
}

// Subscribe registers an in-process listener for a tenant. table 0 receives
// every table. The returned channel is closed after cancel is called or when
// the hub stops.
func (h *Hub) Subscribe(tenantID uuid.UUID, table int32) (<-chan []byte, func()) {
	client := &Client{
		hub:      h,
		tenantID: tenantID,
		table:    table,
		send:     make(chan []byte, 256),
	}
	if !h.add(client) {
		close(client.send)
		return client.send, func() {}
	}

	var once sync.Once
	return client.send, func() {
		once.Do(func() { h.remove(client) })
	}
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
