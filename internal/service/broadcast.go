package service

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	// BroadcastRoomEvent reaches every subscriber of the room.
	BroadcastRoomEvent(roomID string, eventType string, data any)
	// SendToUser reaches one user only; used for per-viewer logs and views.
	SendToUser(userID, roomID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastRoomEvent(string, string, any) {}

func (NoopBroadcaster) SendToUser(string, string, string, any) {}
