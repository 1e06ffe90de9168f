package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PresenceTracker turns WebSocket connects and disconnects into player
// presence. A disconnected player keeps their seat for a grace window;
// when it lapses they are removed from the room.
type PresenceTracker struct {
	rounds *RoundService
	grace  time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewPresenceTracker creates a PresenceTracker.
func NewPresenceTracker(rounds *RoundService, grace time.Duration) *PresenceTracker {
	return &PresenceTracker{rounds: rounds, grace: grace, timers: make(map[string]*time.Timer)}
}

func presenceKey(roomID, userID string) string { return roomID + "/" + userID }

// Connected cancels any pending removal and marks the player online.
func (p *PresenceTracker) Connected(roomID, userID string) {
	p.mu.Lock()
	if t, ok := p.timers[presenceKey(roomID, userID)]; ok {
		t.Stop()
		delete(p.timers, presenceKey(roomID, userID))
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.rounds.SetPresence(ctx, roomID, userID, true); err != nil {
		log.Warn().Err(err).Str("roomId", roomID).Str("userId", userID).Msg("Failed to mark player online")
	}
}

// Disconnected marks the player offline and starts their grace window.
func (p *PresenceTracker) Disconnected(roomID, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.rounds.SetPresence(ctx, roomID, userID, false); err != nil {
		log.Warn().Err(err).Str("roomId", roomID).Str("userId", userID).Msg("Failed to mark player offline")
	}

	key := presenceKey(roomID, userID)
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.timers[key]; ok {
		t.Stop()
	}
	p.timers[key] = time.AfterFunc(p.grace, func() { p.expire(roomID, userID) })
}

// Pending returns how many grace windows are running.
func (p *PresenceTracker) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timers)
}

// expire removes the player once their grace window has lapsed.
func (p *PresenceTracker) expire(roomID, userID string) {
	p.mu.Lock()
	delete(p.timers, presenceKey(roomID, userID))
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	log.Info().Str("roomId", roomID).Str("userId", userID).Dur("grace", p.grace).Msg("Reconnect window lapsed")
	if err := p.rounds.RemovePlayer(ctx, roomID, userID); err != nil {
		log.Error().Err(err).Str("roomId", roomID).Str("userId", userID).Msg("Failed to remove disconnected player")
	}
}

// Stop cancels all pending grace windows.
func (p *PresenceTracker) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, t := range p.timers {
		t.Stop()
		delete(p.timers, k)
	}
}
