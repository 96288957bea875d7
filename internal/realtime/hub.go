// Package realtime fans mutation events out to live client connections.
// Rooms are keyed by the provider's stable subject identifier rather than the
// email address, so a room survives an address change.
package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/loommail/backend/internal/models"
)

// Client wraps one WebSocket connection bound to an identity.
type Client struct {
	id       string
	conn     *websocket.Conn
	identity models.Identity

	// writeMu serializes writes; gorilla/websocket allows only one
	// concurrent writer per connection.
	writeMu sync.Mutex
}

// ID returns the connection's identifier, assigned at bind time.
func (c *Client) ID() string {
	return c.id
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// Identity returns the identity the connection was bound with.
func (c *Client) Identity() models.Identity {
	return c.identity
}

// Hub is the connection registry: subject -> set of live clients. It is the
// only shared mutable state in the realtime path and is safe for concurrent
// bind/unbind/emit.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]map[*Client]struct{}
	maxPerUser int
}

// NewHub creates a hub with a per-user connection limit.
func NewHub(maxPerUser int) *Hub {
	if maxPerUser <= 0 {
		maxPerUser = 10
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		maxPerUser: maxPerUser,
	}
}

// Bind adds a connection to the identity's room. If the per-user limit is
// exceeded, the connection is closed and nil is returned.
func (h *Hub) Bind(identity models.Identity, conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[identity.Subject]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[identity.Subject] = room
	}

	if len(room) >= h.maxPerUser {
		log.Printf("Realtime: user %s exceeded max connections (%d), closing new connection", identity.Subject, h.maxPerUser)
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections for this user"),
			time.Time{},
		)
		_ = conn.Close()
		return nil
	}

	client := &Client{id: uuid.NewString(), conn: conn, identity: identity}
	room[client] = struct{}{}
	log.Printf("Realtime: connection %s bound for user %s (%s)", client.id, identity.Subject, identity.Email)
	return client
}

// Unbind removes a client from its room and closes the connection. Empty
// rooms are dropped; membership is held by live connections only.
func (h *Hub) Unbind(client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	room, ok := h.rooms[client.identity.Subject]
	if ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.identity.Subject)
		}
	}
	h.mu.Unlock()

	_ = client.conn.Close()
}

// Emit delivers an event to every live connection of the subject's room, and
// to no one else. Delivery is best-effort: a failed write drops that
// connection, nothing is queued for later.
func (h *Hub) Emit(subject string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Realtime: failed to marshal %s event: %v", event.Name, err)
		return
	}

	h.mu.RLock()
	room := h.rooms[subject]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.writeMu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, payload)
		client.writeMu.Unlock()
		if err != nil {
			log.Printf("Realtime: failed to write %s event for user %s: %v", event.Name, subject, err)
			go h.Unbind(client)
		}
	}
}

// ActiveConnections returns the number of live connections for a subject.
func (h *Hub) ActiveConnections(subject string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[subject])
}
