package internal

import (
	"log"
	"sort"
	"sync"
)

// Transport delivers ServerMessages to connections and tracks which
// connections belong to which party room. Implementations must not block
// on network I/O; the PartyManager calls them from its event loop.
type Transport interface {
	JoinRoom(room PartyID, id ClientID)
	LeaveRoom(room PartyID, id ClientID)
	// Publish sends msg to every connection in room.
	Publish(room PartyID, msg ServerMessage)
	// Send sends msg to a single connection.
	Send(id ClientID, msg ServerMessage)
	// RoomMembers is for diagnostics only. Authority decisions use the
	// Party's own member list.
	RoomMembers(room PartyID) []ClientID
}

// Hub owns the live websocket clients and the room membership of each.
type Hub struct {
	mu      sync.RWMutex
	clients map[ClientID]*Client
	rooms   map[PartyID]map[ClientID]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[ClientID]*Client),
		rooms:   make(map[PartyID]map[ClientID]struct{}),
	}
}

// Register makes a client reachable by id.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a client from every room and closes its send
// channel, which stops its write pump.
func (h *Hub) Unregister(id ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	for room, members := range h.rooms {
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)
}

func (h *Hub) JoinRoom(room PartyID, id ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[ClientID]struct{})
		h.rooms[room] = members
	}
	members[id] = struct{}{}
}

func (h *Hub) LeaveRoom(room PartyID, id ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) Publish(room PartyID, msg ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id := range h.rooms[room] {
		h.deliver(id, msg)
	}
}

func (h *Hub) Send(id ClientID, msg ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(id, msg)
}

func (h *Hub) RoomMembers(room PartyID) []ClientID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ClientID, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// deliver queues msg without blocking. Callers hold h.mu.
func (h *Hub) deliver(id ClientID, msg ServerMessage) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Printf("Send buffer full for %s, dropping %s", id, msg.Type)
	}
}
