package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/freeeve/warlock/api/internal/model"
)

// ErrNotFound is returned by writes that address a missing row.
var ErrNotFound = errors.New("not found")

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
	RecordResult(ctx context.Context, id string, won bool) error
}

// RoomRepository defines room and seat data operations.
type RoomRepository interface {
	Create(ctx context.Context, name, creatorID, actionTimeout, resultsTimeout string) (*model.Room, error)
	FindByID(ctx context.Context, id string) (*model.Room, error)
	ListOpen(ctx context.Context) ([]model.Room, error)
	ListByUser(ctx context.Context, userID string) ([]model.Room, error)
	ListFinished(ctx context.Context) ([]model.Room, error)
	ListActive(ctx context.Context) ([]model.Room, error)
	AddPlayer(ctx context.Context, roomID, userID string) error
	RemovePlayer(ctx context.Context, roomID, userID string) error
	SetCharacter(ctx context.Context, roomID, userID, race, class string) error
	SetStatus(ctx context.Context, roomID, status string) error
	SetActive(ctx context.Context, roomID string, teams map[string]string) error
	SetFinished(ctx context.Context, roomID, result string) error
	Delete(ctx context.Context, roomID string) error
}

// RoundRepository defines round history operations.
type RoundRepository interface {
	CreateRound(ctx context.Context, roomID string, number int, stateBefore json.RawMessage, deadline time.Time) (*model.Round, error)
	CurrentRound(ctx context.Context, roomID string) (*model.Round, error)
	FindRound(ctx context.Context, roomID string, number int) (*model.Round, error)
	ListRounds(ctx context.Context, roomID string) ([]model.Round, error)
	ResolveRound(ctx context.Context, roundID string, stateAfter, log json.RawMessage, resultsDeadline *time.Time) error
	ListExpired(ctx context.Context) ([]model.Round, error)
}

// MessageRepository defines chat message operations.
type MessageRepository interface {
	Create(ctx context.Context, roomID, senderID, recipientID, content string, round int) (*model.Message, error)
	ListByRoom(ctx context.Context, roomID, userID string) ([]model.Message, error)
}

// RoomCache defines live room state operations (Redis).
type RoomCache interface {
	SetRoomState(ctx context.Context, roomID string, state json.RawMessage) error
	GetRoomState(ctx context.Context, roomID string) (json.RawMessage, error)
	SetAction(ctx context.Context, roomID, playerID string, action json.RawMessage) error
	GetActions(ctx context.Context, roomID string, playerIDs []string) (map[string]json.RawMessage, error)
	MarkSubmitted(ctx context.Context, roomID, playerID string) error
	SubmittedPlayers(ctx context.Context, roomID string) ([]string, error)
	MarkReady(ctx context.Context, roomID, playerID string) error
	ReadyPlayers(ctx context.Context, roomID string) ([]string, error)
	SetOffline(ctx context.Context, roomID, playerID string, offline bool) error
	OfflinePlayers(ctx context.Context, roomID string) ([]string, error)
	SetTimer(ctx context.Context, roomID string, deadline time.Time) error
	ClearTimer(ctx context.Context, roomID string) error
	ClearRoundData(ctx context.Context, roomID string, playerIDs []string) error
	DeleteRoomData(ctx context.Context, roomID string, playerIDs []string) error
}
