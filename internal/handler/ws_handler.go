package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/warlock/api/internal/auth"
	"github.com/freeeve/warlock/api/pkg/warlock"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 256

	// EventRoomState carries a fresh view after a subscribe.
	EventRoomState = "room_state"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware
	},
}

// RoomViewer renders a room for one viewer.
type RoomViewer interface {
	View(ctx context.Context, roomID, viewerID string) (*warlock.RoomView, error)
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub    *Hub
	jwtMgr *auth.JWTManager
	viewer RoomViewer
}

// NewWSHandler creates a WSHandler. viewer may be nil, in which case no
// state is pushed on subscribe.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager, viewer RoomViewer) *WSHandler {
	return &WSHandler{hub: hub, jwtMgr: jwtMgr, viewer: viewer}
}

// ServeWS handles GET /api/v1/ws. Auth is via the ?token= query parameter
// since browsers can't set headers on the upgrade request.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, `{"error":"missing token parameter"}`, http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtMgr.ValidateAccessToken(tokenStr)
	if err != nil {
		http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:   conn,
		userID: claims.UserID,
		send:   make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)
	h.push(client, WSEvent{Type: "connected", Data: map[string]any{"user_id": claims.UserID}})

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("userId", claims.UserID).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// push queues an event for a single connection.
func (h *WSHandler) push(c *WSConn, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("userId", c.userID).Msg("Failed to marshal WebSocket event")
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("userId", c.userID).Str("roomId", event.RoomID).Msg("Dropping WebSocket message, buffer full")
	}
}

// subscribe joins the room channel and sends the caller's current view, so
// a reconnecting client catches up without polling.
func (h *WSHandler) subscribe(c *WSConn, roomID string) {
	h.hub.Subscribe(c, roomID)
	if h.viewer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	view, err := h.viewer.View(ctx, roomID, c.userID)
	if err != nil {
		log.Debug().Err(err).Str("roomId", roomID).Str("userId", c.userID).Msg("No view for subscribed room")
		return
	}
	h.push(c, WSEvent{Type: EventRoomState, RoomID: roomID, Data: map[string]any{"view": view}})
}

// handleClientMessage applies one decoded client message.
func (h *WSHandler) handleClientMessage(c *WSConn, msg ClientMessage) {
	if msg.RoomID == "" {
		return
	}
	switch msg.Action {
	case "subscribe":
		h.subscribe(c, msg.RoomID)
	case "unsubscribe":
		h.hub.Unsubscribe(c, msg.RoomID)
	}
}

// readPump reads messages from the WebSocket connection.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("userId", c.userID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("userId", c.userID).Msg("WebSocket unexpected close")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		h.handleClientMessage(c, msg)
	}
}

// writePump writes queued messages and keeps the connection alive with pings.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Batch whatever else is queued, newline separated.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
