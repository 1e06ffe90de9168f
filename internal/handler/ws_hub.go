package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Data   any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	RoomID string `json:"room_id"`
}

// WSConn wraps a WebSocket connection with its user and subscriptions.
type WSConn struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// PresenceListener is told when a user's first connection subscribes to a
// room and when their last one leaves it.
type PresenceListener interface {
	Connected(roomID, userID string)
	Disconnected(roomID, userID string)
}

type presenceChange struct {
	roomID string
	userID string
}

// Hub manages WebSocket connections and room-channel subscriptions.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	rooms       map[string]map[*WSConn]bool // roomID -> set of connections
	presence    PresenceListener
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		rooms:       make(map[string]map[*WSConn]bool),
	}
}

// SetPresenceListener registers the listener for presence changes. Call it
// before the hub serves connections.
func (h *Hub) SetPresenceListener(p PresenceListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.presence = p
}

// userSubscribedLocked reports whether any of the user's connections is
// subscribed to the room. Callers hold h.mu.
func (h *Hub) userSubscribedLocked(roomID, userID string) bool {
	for c := range h.rooms[roomID] {
		if c.userID == userID {
			return true
		}
	}
	return false
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its subscriptions.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	if !h.connections[c] {
		h.mu.Unlock()
		return
	}
	delete(h.connections, c)
	var gone []presenceChange
	for roomID, conns := range h.rooms {
		if !conns[c] {
			continue
		}
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
		if !h.userSubscribedLocked(roomID, c.userID) {
			gone = append(gone, presenceChange{roomID, c.userID})
		}
	}
	close(c.send)
	p := h.presence
	h.mu.Unlock()

	if p != nil {
		for _, g := range gone {
			p.Disconnected(g.roomID, g.userID)
		}
	}
}

// Subscribe adds a connection to a room channel.
func (h *Hub) Subscribe(c *WSConn, roomID string) {
	h.mu.Lock()
	if h.rooms[roomID][c] {
		h.mu.Unlock()
		return
	}
	first := !h.userSubscribedLocked(roomID, c.userID)
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*WSConn]bool)
	}
	h.rooms[roomID][c] = true
	p := h.presence
	h.mu.Unlock()

	if first && p != nil {
		p.Connected(roomID, c.userID)
	}
}

// Unsubscribe removes a connection from a room channel.
func (h *Hub) Unsubscribe(c *WSConn, roomID string) {
	h.mu.Lock()
	conns, ok := h.rooms[roomID]
	if !ok || !conns[c] {
		h.mu.Unlock()
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.rooms, roomID)
	}
	last := !h.userSubscribedLocked(roomID, c.userID)
	p := h.presence
	h.mu.Unlock()

	if last && p != nil {
		p.Disconnected(roomID, c.userID)
	}
}

// BroadcastToRoom sends an event to all connections subscribed to a room.
func (h *Hub) BroadcastToRoom(roomID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("roomId", roomID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[roomID] {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("userId", c.userID).Str("roomId", roomID).Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// BroadcastToUser sends an event to a specific user across all their connections.
func (h *Hub) BroadcastToUser(userID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections {
		if c.userID == userID {
			select {
			case c.send <- data:
			default:
				log.Warn().Str("userId", userID).Str("roomId", event.RoomID).Msg("Dropping WebSocket message, buffer full")
			}
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// RoomSubscriberCount returns the number of connections subscribed to a room.
func (h *Hub) RoomSubscriberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
