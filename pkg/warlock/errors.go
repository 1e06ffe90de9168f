package warlock

import (
	"errors"
	"fmt"
)

var (
	ErrWrongPhase          = errors.New("room is not in the required phase")
	ErrUnknownPlayer       = errors.New("unknown player")
	ErrNotEligible         = errors.New("player is not eligible to act this round")
	ErrUnknownAbility      = errors.New("unknown ability")
	ErrAbilityNotAvailable = errors.New("ability not available to this player")
	ErrOnCooldown          = errors.New("ability is on cooldown")
	ErrInvalidTarget       = errors.New("invalid target")

	ErrRoomFull          = errors.New("room is full")
	ErrAlreadyJoined     = errors.New("player already in room")
	ErrNotEnoughPlayers  = errors.New("not enough players")
	ErrUnknownRace       = errors.New("unknown race")
	ErrUnknownClass      = errors.New("unknown class")
	ErrIncompatibleClass = errors.New("class not available to race")
	ErrNoCharacter       = errors.New("not every player has selected a character")
	ErrNotInPhase        = errors.New("player is not waiting on this phase")

	ErrEntityDead      = errors.New("entity is dead")
	ErrInvalidDuration = errors.New("effect duration must be positive")
	ErrImmune          = errors.New("entity is immune")
	ErrAlreadyActive   = errors.New("effect already active")
)

// ValidationError describes why a submitted action was rejected.
type ValidationError struct {
	Action Action
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid action %s by %s", e.Action.AbilityID, e.Action.ActorID)
	if e.Detail != "" {
		return msg + ": " + e.Reason.Error() + " (" + e.Detail + ")"
	}
	return msg + ": " + e.Reason.Error()
}

func (e *ValidationError) Unwrap() error { return e.Reason }

func invalid(a Action, reason error, detail string) error {
	return &ValidationError{Action: a, Reason: reason, Detail: detail}
}
