package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/freeeve/warlock/api/internal/logger"
	"github.com/freeeve/warlock/api/pkg/warlock"
)

// ActionInput is the request payload for submitting an action.
type ActionInput struct {
	AbilityID string            `json:"ability_id"`
	TargetID  string            `json:"target_id,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

// Eligibility tells a player whether they may act this round.
type Eligibility struct {
	Round    int           `json:"round"`
	Phase    warlock.Phase `json:"phase"`
	Eligible bool          `json:"eligible"`
	Reason   string        `json:"reason,omitempty"`
}

// ActionService handles action submission for the open round.
type ActionService struct {
	rounds *RoundService
}

// NewActionService creates an ActionService.
func NewActionService(rounds *RoundService) *ActionService {
	return &ActionService{rounds: rounds}
}

// SubmitAction validates and stores a player's action. A resubmission
// replaces the earlier one. When every eligible player has submitted the
// round resolves immediately.
func (s *ActionService) SubmitAction(ctx context.Context, roomID, userID string, in ActionInput) (*warlock.Action, error) {
	r := s.rounds
	mu := r.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	room, err := r.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	a := warlock.Action{
		ActorID:   userID,
		AbilityID: in.AbilityID,
		TargetID:  in.TargetID,
		Params:    in.Params,
	}
	if err := room.SubmitAction(a); err != nil {
		return nil, err
	}

	gs := room.State()
	accepted := *gs.Player(userID).Action
	data, err := json.Marshal(accepted)
	if err != nil {
		return nil, fmt.Errorf("marshal action: %w", err)
	}
	if err := r.cache.SetAction(ctx, roomID, userID, data); err != nil {
		return nil, fmt.Errorf("cache action: %w", err)
	}
	if err := r.cache.MarkSubmitted(ctx, roomID, userID); err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}

	submitted, eligible := 0, 0
	for _, p := range gs.Players {
		if room.IsPlayerEligibleThisRound(p.ID) {
			eligible++
			if p.Submitted {
				submitted++
			}
		}
	}
	l := logger.ForRoom(ctx, roomID)
	l.Debug().Str("playerId", userID).Str("ability", accepted.AbilityID).
		Int("seq", accepted.Seq).Msg("Action submitted")
	r.broadcaster.BroadcastRoomEvent(roomID, EventActionSubmitted, map[string]any{
		"player_id": userID,
		"submitted": submitted,
		"eligible":  eligible,
	})

	if readyToResolve(room) {
		l.Info().Int("round", gs.Round).Msg("All actions in, resolving early")
		if err := r.resolveLocked(ctx, roomID, true); err != nil {
			l.Error().Err(err).Msg("Early resolution failed")
		}
	}
	return &accepted, nil
}

// Eligibility reports whether the user may submit an action now.
func (s *ActionService) Eligibility(ctx context.Context, roomID, userID string) (*Eligibility, error) {
	r := s.rounds
	mu := r.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	room, err := r.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	gs := room.State()
	p := gs.Player(userID)
	if p == nil {
		return nil, ErrNotInRoom
	}

	e := &Eligibility{Round: gs.Round, Phase: gs.Phase, Eligible: room.IsPlayerEligibleThisRound(userID)}
	switch {
	case e.Eligible:
	case gs.Phase != warlock.PhaseAction:
		e.Reason = "no action phase open"
	case !p.Alive:
		e.Reason = "dead"
	case p.Stunned():
		e.Reason = "stunned"
	case !p.Connected:
		e.Reason = "disconnected"
	}
	return e, nil
}
