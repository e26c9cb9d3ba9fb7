package chathub

import (
	"errors"
	"log"
	"sync"

	"pulse/backend/internal/models"
	"pulse/backend/internal/observability"
)

var ErrHubClosed = errors.New("hub is shut down")

const privateRoomPrefix = "user:"

// PrivateRoom is the room every connection of userID joins on open.
func PrivateRoom(userID string) string {
	return privateRoomPrefix + userID
}

type connSet map[string]struct{}

// Hub is the process-wide registry of live connections and their room
// memberships. It is created once and handed to whoever needs fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Client  // connection id -> client
	users   map[string]connSet // user id -> connection ids
	rooms   map[string]connSet // room -> connection ids
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]Client),
		users:   make(map[string]connSet),
		rooms:   make(map[string]connSet),
	}
}

// Register adds a connection. first is true when it is the only live
// connection of its user.
func (h *Hub) Register(c Client) (first bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false, ErrHubClosed
	}

	h.clients[c.ID()] = c
	conns, ok := h.users[c.UserID()]
	if !ok {
		conns = make(connSet)
		h.users[c.UserID()] = conns
	}
	conns[c.ID()] = struct{}{}
	return len(conns) == 1, nil
}

// Unregister drops a connection from every room and closes its send channel.
// last is true when the user has no live connection left. Unknown
// connections are ignored.
func (h *Hub) Unregister(c Client) (last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID()]; !ok {
		return false
	}
	delete(h.clients, c.ID())

	for room, members := range h.rooms {
		delete(members, c.ID())
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}

	conns := h.users[c.UserID()]
	delete(conns, c.ID())
	if len(conns) == 0 {
		delete(h.users, c.UserID())
		last = true
	}

	if !h.closed {
		c.Close()
	}
	return last
}

func (h *Hub) Join(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(connSet)
		h.rooms[room] = members
	}
	members[connID] = struct{}{}
}

func (h *Hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// InRoom reports whether the connection is currently a member of room.
func (h *Hub) InRoom(connID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.rooms[room][connID]
	return ok
}

// EmitAll enqueues env on every live connection and returns how many
// accepted it.
func (h *Hub) EmitAll(env models.Envelope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0
	}
	delivered := 0
	for _, c := range h.clients {
		if h.enqueue(c, env) {
			delivered++
		}
	}
	return delivered
}

// EmitRoom enqueues env on every member of room except the connection
// exceptID. An empty exceptID excludes nobody.
func (h *Hub) EmitRoom(room string, env models.Envelope, exceptID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0
	}
	delivered := 0
	for id := range h.rooms[room] {
		if id == exceptID {
			continue
		}
		if h.enqueue(h.clients[id], env) {
			delivered++
		}
	}
	return delivered
}

// EmitTo enqueues env on a single connection.
func (h *Hub) EmitTo(connID string, env models.Envelope) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok || h.closed {
		return false
	}
	return h.enqueue(c, env)
}

// EmitToUser pushes a server-originated envelope to every connection of userID.
func (h *Hub) EmitToUser(userID string, env models.Envelope) int {
	return h.EmitRoom(PrivateRoom(userID), env, "")
}

// EmitToAll pushes a server-originated envelope to every connection.
func (h *Hub) EmitToAll(env models.Envelope) int {
	return h.EmitAll(env)
}

// ConnectionCount is the number of live connections of userID.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Len is the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown stops all fan-out and closes every send channel, which makes the
// transports hang up. Sessions still unregister themselves afterwards.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, c := range h.clients {
		c.Close()
	}
	log.Printf("Hub shut down, closed %d connections", len(h.clients))
}

// enqueue never blocks: a full buffer drops the copy.
func (h *Hub) enqueue(c Client, env models.Envelope) bool {
	select {
	case c.GetSendChannel() <- env:
		return true
	default:
		observability.IncWSDropped()
		log.Printf("WARNING: send buffer full for connection %s (user %s), dropping %s", c.ID(), c.UserID(), env.Type)
		return false
	}
}
