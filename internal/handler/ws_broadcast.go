package handler

// BroadcastRoomEvent implements service.Broadcaster using the WebSocket hub.
func (h *Hub) BroadcastRoomEvent(roomID string, eventType string, data any) {
	h.BroadcastToRoom(roomID, WSEvent{
		Type:   eventType,
		RoomID: roomID,
		Data:   data,
	})
}

// SendToUser implements service.Broadcaster. The event reaches every
// connection the user has open, subscribed to the room or not.
func (h *Hub) SendToUser(userID, roomID string, eventType string, data any) {
	h.BroadcastToUser(userID, WSEvent{
		Type:   eventType,
		RoomID: roomID,
		Data:   data,
	})
}
