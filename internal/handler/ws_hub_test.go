package handler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/freeeve/warlock/api/pkg/warlock"
)

func newTestConn(userID string) *WSConn {
	return &WSConn{
		conn:   nil, // no real connection for hub tests
		userID: userID,
		send:   make(chan []byte, 256),
	}
}

type presenceCall struct {
	roomID, userID string
	connected      bool
}

type recordingPresence struct {
	mu    sync.Mutex
	calls []presenceCall
}

func (p *recordingPresence) Connected(roomID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, presenceCall{roomID, userID, true})
}

func (p *recordingPresence) Disconnected(roomID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, presenceCall{roomID, userID, false})
}

func (p *recordingPresence) snapshot() []presenceCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]presenceCall(nil), p.calls...)
}

func receive(t *testing.T, c *WSConn) WSEvent {
	t.Helper()
	select {
	case msg := <-c.send:
		var event WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return event
	case <-time.After(time.Second):
		t.Fatalf("%s did not receive an event", c.userID)
	}
	return WSEvent{}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	c := newTestConn("user-1")

	hub.Register(c)
	if hub.ConnectionCount() != 1 {
		t.Errorf("expected 1 connection, got %d", hub.ConnectionCount())
	}

	hub.Unregister(c)
	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections, got %d", hub.ConnectionCount())
	}
	hub.Unregister(c) // second call must not close the channel twice
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	hub := NewHub()
	c := newTestConn("user-1")
	hub.Register(c)
	defer hub.Unregister(c)

	hub.Subscribe(c, "room-1")
	hub.Subscribe(c, "room-1")
	if hub.RoomSubscriberCount("room-1") != 1 {
		t.Errorf("expected 1 subscriber, got %d", hub.RoomSubscriberCount("room-1"))
	}

	hub.Unsubscribe(c, "room-1")
	if hub.RoomSubscriberCount("room-1") != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.RoomSubscriberCount("room-1"))
	}
}

func TestHubBroadcastRoomEvent(t *testing.T) {
	hub := NewHub()
	c1 := newTestConn("user-1")
	c2 := newTestConn("user-2")
	c3 := newTestConn("user-3") // not subscribed

	for _, c := range []*WSConn{c1, c2, c3} {
		hub.Register(c)
		defer hub.Unregister(c)
	}
	hub.Subscribe(c1, "room-1")
	hub.Subscribe(c2, "room-1")

	hub.BroadcastRoomEvent("room-1", "round_started", map[string]int{"round": 1})

	event := receive(t, c1)
	if event.Type != "round_started" || event.RoomID != "room-1" {
		t.Errorf("got %+v", event)
	}
	receive(t, c2)

	select {
	case <-c3.send:
		t.Error("c3 should not have received broadcast")
	default:
	}
}

func TestHubSendToUser(t *testing.T) {
	hub := NewHub()
	c1 := newTestConn("user-1")
	c2 := newTestConn("user-1") // same user, two connections
	c3 := newTestConn("user-2")

	for _, c := range []*WSConn{c1, c2, c3} {
		hub.Register(c)
		defer hub.Unregister(c)
	}

	hub.SendToUser("user-1", "room-1", "round_resolved", map[string]string{"secret": "yes"})

	for _, c := range []*WSConn{c1, c2} {
		if event := receive(t, c); event.RoomID != "room-1" {
			t.Errorf("room id = %q", event.RoomID)
		}
	}

	select {
	case <-c3.send:
		t.Error("user-2 should not have received user-1's private event")
	default:
	}
}

func TestHubPresenceFirstAndLastConnection(t *testing.T) {
	hub := NewHub()
	p := &recordingPresence{}
	hub.SetPresenceListener(p)

	tab1 := newTestConn("user-1")
	tab2 := newTestConn("user-1")
	hub.Register(tab1)
	hub.Register(tab2)

	hub.Subscribe(tab1, "room-1")
	hub.Subscribe(tab2, "room-1")
	hub.Unsubscribe(tab1, "room-1")
	if calls := p.snapshot(); len(calls) != 1 || !calls[0].connected {
		t.Fatalf("after one tab leaves: %+v", calls)
	}

	hub.Unregister(tab2)
	calls := p.snapshot()
	if len(calls) != 2 {
		t.Fatalf("calls = %+v, want connect then disconnect", calls)
	}
	if calls[1] != (presenceCall{"room-1", "user-1", false}) {
		t.Errorf("last call = %+v", calls[1])
	}
	hub.Unregister(tab1)
	if len(p.snapshot()) != 2 {
		t.Error("unsubscribed connection must not report presence")
	}
}

func TestHubUnregisterCleansUpSubscriptions(t *testing.T) {
	hub := NewHub()
	p := &recordingPresence{}
	hub.SetPresenceListener(p)
	c := newTestConn("user-1")
	hub.Register(c)
	hub.Subscribe(c, "room-1")
	hub.Subscribe(c, "room-2")

	hub.Unregister(c)

	if hub.RoomSubscriberCount("room-1") != 0 || hub.RoomSubscriberCount("room-2") != 0 {
		t.Error("expected no subscribers after unregister")
	}
	disconnects := 0
	for _, call := range p.snapshot() {
		if !call.connected {
			disconnects++
		}
	}
	if disconnects != 2 {
		t.Errorf("disconnects = %d, want one per room", disconnects)
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	hub := NewHub()
	hub.SetPresenceListener(&recordingPresence{})
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c := newTestConn("user")
			hub.Register(c)
			hub.Subscribe(c, "room-1")
			hub.BroadcastRoomEvent("room-1", "test", id)
			hub.Unsubscribe(c, "room-1")
			hub.Unregister(c)
		}(i)
	}

	wg.Wait()
	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections after concurrent test, got %d", hub.ConnectionCount())
	}
}

type stubViewer struct {
	err error
}

func (v stubViewer) View(_ context.Context, roomID, viewerID string) (*warlock.RoomView, error) {
	if v.err != nil {
		return nil, v.err
	}
	return &warlock.RoomView{RoomID: roomID, Phase: warlock.PhaseAction, Round: 3}, nil
}

func TestSubscribePushesRoomState(t *testing.T) {
	hub := NewHub()
	h := NewWSHandler(hub, nil, stubViewer{})
	c := newTestConn("user-1")
	hub.Register(c)
	defer hub.Unregister(c)

	h.handleClientMessage(c, ClientMessage{Action: "subscribe", RoomID: "room-1"})

	if hub.RoomSubscriberCount("room-1") != 1 {
		t.Fatal("expected a subscription")
	}
	event := receive(t, c)
	if event.Type != EventRoomState {
		t.Fatalf("type = %s, want room_state", event.Type)
	}
	view := event.Data.(map[string]any)["view"].(map[string]any)
	if view["round"] != float64(3) {
		t.Errorf("view = %v", view)
	}

	h.handleClientMessage(c, ClientMessage{Action: "unsubscribe", RoomID: "room-1"})
	if hub.RoomSubscriberCount("room-1") != 0 {
		t.Error("expected unsubscribe")
	}
}

func TestSubscribeWithoutViewStillSubscribes(t *testing.T) {
	hub := NewHub()
	h := NewWSHandler(hub, nil, stubViewer{err: errors.New("room not found")})
	c := newTestConn("user-1")
	hub.Register(c)
	defer hub.Unregister(c)

	h.handleClientMessage(c, ClientMessage{Action: "subscribe", RoomID: "room-9"})
	h.handleClientMessage(c, ClientMessage{Action: "subscribe"})

	if hub.RoomSubscriberCount("room-9") != 1 {
		t.Error("expected a subscription")
	}
	select {
	case <-c.send:
		t.Error("no state should be pushed when the view fails")
	default:
	}
}
