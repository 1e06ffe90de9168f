package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/warlock/api/internal/model"
	"github.com/freeeve/warlock/api/internal/repository"
	"github.com/freeeve/warlock/api/pkg/warlock"
)

var (
	ErrNotCreator  = errors.New("only the creator can do this")
	ErrRoomNotOpen = errors.New("room is no longer open")
	ErrUnknownUser = errors.New("user not found")
)

// Timeouts are the phase lengths used when a room does not set its own.
type Timeouts struct {
	Action  time.Duration
	Results time.Duration
}

// RoomService handles the room lobby: creating, joining, character
// selection and starting the game.
type RoomService struct {
	roomRepo repository.RoomRepository
	userRepo repository.UserRepository
	rounds   *RoundService
	defaults Timeouts
}

// NewRoomService creates a RoomService.
func NewRoomService(roomRepo repository.RoomRepository, userRepo repository.UserRepository, rounds *RoundService, defaults Timeouts) *RoomService {
	if defaults.Action <= 0 {
		defaults.Action = defaultActionTimeout
	}
	if defaults.Results <= 0 {
		defaults.Results = defaultResultsTimeout
	}
	return &RoomService{roomRepo: roomRepo, userRepo: userRepo, rounds: rounds, defaults: defaults}
}

// CreateRoom creates a room in the lobby with the creator already seated.
func (s *RoomService) CreateRoom(ctx context.Context, name, creatorID, actionTimeout, resultsTimeout string) (*model.Room, error) {
	creator, err := s.userRepo.FindByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, ErrUnknownUser
	}

	rm, err := s.roomRepo.Create(ctx, name, creatorID,
		toPgInterval(actionTimeout, s.defaults.Action),
		toPgInterval(resultsTimeout, s.defaults.Results))
	if err != nil {
		return nil, err
	}
	if err := s.roomRepo.AddPlayer(ctx, rm.ID, creatorID); err != nil {
		return nil, err
	}

	mu := s.rounds.roomLock(rm.ID)
	mu.Lock()
	defer mu.Unlock()

	room := warlock.NewRoom(rm.ID, s.rounds.gameCfg, s.rounds.newRand(), warlock.WithClock(s.rounds.now))
	if err := room.Join(creatorID, creator.DisplayName); err != nil {
		return nil, err
	}
	if err := s.rounds.saveState(ctx, room); err != nil {
		return nil, err
	}
	log.Info().Str("roomId", rm.ID).Str("creatorId", creatorID).Msg("Room created")
	return s.findRoom(ctx, rm.ID)
}

// lobbyOp runs fn against the loaded room under the room lock, persists
// the new state, and tells subscribers the lobby changed.
func (s *RoomService) lobbyOp(ctx context.Context, roomID string, fn func(rm *model.Room, room *warlock.Room) error) error {
	mu := s.rounds.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	rm, err := s.findRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if rm.Status != model.RoomLobby && rm.Status != model.RoomCharacterSelect {
		return ErrRoomNotOpen
	}
	room, err := s.rounds.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := fn(rm, room); err != nil {
		return err
	}
	if err := s.rounds.saveState(ctx, room); err != nil {
		return err
	}
	s.rounds.broadcaster.BroadcastRoomEvent(roomID, EventRoomUpdated, map[string]any{
		"phase":   room.State().Phase,
		"players": len(room.State().Players),
	})
	return nil
}

// JoinRoom seats a user in an open room.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, userID string) error {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUnknownUser
	}
	return s.lobbyOp(ctx, roomID, func(_ *model.Room, room *warlock.Room) error {
		if err := room.Join(userID, u.DisplayName); err != nil {
			return err
		}
		return s.roomRepo.AddPlayer(ctx, roomID, userID)
	})
}

// LeaveRoom frees the user's seat before the game starts.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, userID string) error {
	return s.lobbyOp(ctx, roomID, func(_ *model.Room, room *warlock.Room) error {
		if err := room.Leave(userID); err != nil {
			if errors.Is(err, warlock.ErrUnknownPlayer) {
				return ErrNotInRoom
			}
			return err
		}
		return s.roomRepo.RemovePlayer(ctx, roomID, userID)
	})
}

// OpenCharacterSelect closes the lobby and lets players pick characters.
func (s *RoomService) OpenCharacterSelect(ctx context.Context, roomID, userID string) error {
	return s.lobbyOp(ctx, roomID, func(rm *model.Room, room *warlock.Room) error {
		if rm.CreatorID != userID {
			return ErrNotCreator
		}
		if err := room.OpenCharacterSelect(); err != nil {
			return err
		}
		return s.roomRepo.SetStatus(ctx, roomID, model.RoomCharacterSelect)
	})
}

// SelectCharacter records the user's race and class.
func (s *RoomService) SelectCharacter(ctx context.Context, roomID, userID, race, class string) error {
	return s.lobbyOp(ctx, roomID, func(_ *model.Room, room *warlock.Room) error {
		if err := room.SelectCharacter(userID, race, class); err != nil {
			if errors.Is(err, warlock.ErrUnknownPlayer) {
				return ErrNotInRoom
			}
			return err
		}
		return s.roomRepo.SetCharacter(ctx, roomID, userID, race, class)
	})
}

// StartRoom assigns teams and opens round 1.
func (s *RoomService) StartRoom(ctx context.Context, roomID, userID string) (*model.Room, error) {
	if err := s.startLocked(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.GetRoom(ctx, roomID)
}

func (s *RoomService) startLocked(ctx context.Context, roomID, userID string) error {
	mu := s.rounds.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	rm, err := s.findRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if rm.CreatorID != userID {
		return ErrNotCreator
	}
	if rm.Status != model.RoomCharacterSelect {
		return fmt.Errorf("%w: %s", warlock.ErrWrongPhase, rm.Status)
	}
	room, err := s.rounds.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := room.Start(); err != nil {
		return err
	}

	teams := make(map[string]string)
	for _, p := range room.State().Players {
		teams[p.ID] = string(p.Team)
	}
	if err := s.roomRepo.SetActive(ctx, roomID, teams); err != nil {
		return err
	}
	log.Info().Str("roomId", roomID).Int("players", len(teams)).Msg("Game started")
	return s.rounds.openRound(ctx, rm, room)
}

// GetRoom returns a room. Team assignments stay hidden until it is finished.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	rm, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if rm.Status == model.RoomActive {
		if ids, err := s.rounds.cache.SubmittedPlayers(ctx, roomID); err == nil {
			rm.SubmittedCount = len(ids)
		}
		if ids, err := s.rounds.cache.ReadyPlayers(ctx, roomID); err == nil {
			rm.ReadyCount = len(ids)
		}
	}
	return redactTeams(rm), nil
}

func (s *RoomService) findRoom(ctx context.Context, roomID string) (*model.Room, error) {
	rm, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if rm == nil {
		return nil, ErrRoomNotFound
	}
	return rm, nil
}

func redactTeams(rm *model.Room) *model.Room {
	if rm.Status == model.RoomFinished {
		return rm
	}
	for i := range rm.Players {
		rm.Players[i].Team = ""
	}
	return rm
}

// ListRooms returns open rooms, the user's rooms, or finished rooms.
func (s *RoomService) ListRooms(ctx context.Context, userID, filter string) ([]model.Room, error) {
	var rooms []model.Room
	var err error
	switch filter {
	case "my":
		rooms, err = s.roomRepo.ListByUser(ctx, userID)
	case "finished":
		rooms, err = s.roomRepo.ListFinished(ctx)
	default:
		rooms, err = s.roomRepo.ListOpen(ctx)
	}
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		redactTeams(&rooms[i])
	}
	return rooms, nil
}

// DeleteRoom removes a room that has not started. Only its creator may.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID, userID string) error {
	mu := s.rounds.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	rm, err := s.findRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if rm.CreatorID != userID {
		return ErrNotCreator
	}
	if rm.Status != model.RoomLobby && rm.Status != model.RoomCharacterSelect {
		return ErrRoomNotOpen
	}
	if err := s.roomRepo.Delete(ctx, roomID); err != nil {
		return err
	}
	ids := make([]string, len(rm.Players))
	for i, p := range rm.Players {
		ids[i] = p.UserID
	}
	if err := s.rounds.cache.DeleteRoomData(ctx, roomID, ids); err != nil {
		log.Warn().Err(err).Str("roomId", roomID).Msg("Failed to delete room data")
	}
	s.rounds.broadcaster.BroadcastRoomEvent(roomID, EventRoomUpdated, map[string]any{"deleted": true})
	return nil
}
