package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/warlock/api/internal/model"
	"github.com/freeeve/warlock/api/internal/repository"
	"github.com/freeeve/warlock/api/pkg/warlock"
)

// WebSocket event types sent by the round lifecycle.
const (
	EventRoomUpdated     = "room_updated"
	EventRoundStarted    = "round_started"
	EventActionSubmitted = "action_submitted"
	EventRoundResolved   = "round_resolved"
	EventPlayerReady     = "player_ready"
	EventGameOver        = "game_over"
	EventPlayerPresence  = "player_presence"
	EventMessage         = "message"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomNotActive = errors.New("room is not active")
	ErrRoundNotFound = errors.New("round not found")
	ErrNotInRoom     = errors.New("user is not in this room")
)

// Fallback timeouts when a stored interval cannot be parsed.
const (
	defaultActionTimeout  = 90 * time.Second
	defaultResultsTimeout = 20 * time.Second
)

// RoundService drives the round lifecycle of active rooms: opening rounds,
// resolving them on deadline or once everyone has acted, and moving from
// results to the next round or the end of the game.
type RoundService struct {
	roomRepo    repository.RoomRepository
	roundRepo   repository.RoundRepository
	userRepo    repository.UserRepository
	cache       repository.RoomCache
	broadcaster Broadcaster
	gameCfg     *warlock.Config

	newRand func() warlock.Rand
	now     func() time.Time

	// roomLocks serializes every state change of a room. The keyspace
	// listener, the poller and request handlers may all race on one room.
	roomLocks sync.Map
}

// NewRoundService creates a RoundService.
func NewRoundService(
	roomRepo repository.RoomRepository,
	roundRepo repository.RoundRepository,
	userRepo repository.UserRepository,
	cache repository.RoomCache,
	broadcaster Broadcaster,
	gameCfg *warlock.Config,
) *RoundService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	if gameCfg == nil {
		gameCfg = warlock.DefaultConfig()
	}
	return &RoundService{
		roomRepo:    roomRepo,
		roundRepo:   roundRepo,
		userRepo:    userRepo,
		cache:       cache,
		broadcaster: broadcaster,
		gameCfg:     gameCfg,
		newRand:     func() warlock.Rand { return warlock.NewRand(time.Now().UnixNano()) },
		now:         time.Now,
	}
}

// SetRand overrides the random source used for new and loaded rooms.
func (s *RoundService) SetRand(fn func() warlock.Rand) {
	s.newRand = fn
}

func (s *RoundService) roomLock(roomID string) *sync.Mutex {
	v, _ := s.roomLocks.LoadOrStore(roomID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// loadRoom rebuilds the engine room from the cached snapshot plus the
// pending per-round data. Falls back to Postgres when the cache is empty.
// Callers hold the room lock.
func (s *RoundService) loadRoom(ctx context.Context, roomID string) (*warlock.Room, error) {
	gs, err := s.loadState(ctx, roomID)
	if err != nil {
		return nil, err
	}
	room := warlock.LoadRoom(gs, s.gameCfg, s.newRand(), warlock.WithClock(s.now))

	offline, err := s.cache.OfflinePlayers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("offline players: %w", err)
	}
	for _, id := range offline {
		if err := room.SetConnected(id, false); err != nil {
			log.Debug().Str("roomId", roomID).Str("playerId", id).Msg("Offline flag for unknown player")
		}
	}

	switch gs.Phase {
	case warlock.PhaseAction:
		if err := s.restoreActions(ctx, room); err != nil {
			return nil, err
		}
	case warlock.PhaseResults:
		ready, err := s.cache.ReadyPlayers(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("ready players: %w", err)
		}
		for _, id := range ready {
			if err := room.PlayerReady(id); err != nil {
				log.Debug().Err(err).Str("roomId", roomID).Str("playerId", id).Msg("Dropping stale ready flag")
			}
		}
	}
	return room, nil
}

func (s *RoundService) loadState(ctx context.Context, roomID string) (*warlock.GameState, error) {
	data, err := s.cache.GetRoomState(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room state: %w", err)
	}
	if data == nil {
		rd, err := s.roundRepo.CurrentRound(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("current round: %w", err)
		}
		if rd != nil {
			data = rd.StateBefore
			if rd.ResolvedAt != nil && rd.StateAfter != nil {
				data = rd.StateAfter
			}
		}
	}
	if data == nil {
		return s.lobbyState(ctx, roomID)
	}

	var gs warlock.GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, fmt.Errorf("unmarshal room state: %w", err)
	}
	return &gs, nil
}

// lobbyState rebuilds a pre-game state from the room's seats.
func (s *RoundService) lobbyState(ctx context.Context, roomID string) (*warlock.GameState, error) {
	rm, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("find room: %w", err)
	}
	if rm == nil {
		return nil, ErrRoomNotFound
	}
	gs := &warlock.GameState{RoomID: rm.ID, Phase: warlock.PhaseLobby}
	switch rm.Status {
	case model.RoomCharacterSelect:
		gs.Phase = warlock.PhaseCharacterSelect
	case model.RoomActive, model.RoomFinished:
		return nil, fmt.Errorf("room %s is %s but has no stored state", rm.ID, rm.Status)
	}
	for _, p := range rm.Players {
		gs.Players = append(gs.Players, &warlock.Player{
			Entity:    warlock.Entity{ID: p.UserID},
			Name:      p.DisplayName,
			Team:      warlock.TeamGood,
			Race:      p.Race,
			Class:     p.Class,
			Connected: true,
		})
	}
	return gs, nil
}

// restoreActions re-applies the pending actions in submission order.
func (s *RoundService) restoreActions(ctx context.Context, room *warlock.Room) error {
	gs := room.State()
	raw, err := s.cache.GetActions(ctx, gs.RoomID, playerIDs(gs))
	if err != nil {
		return fmt.Errorf("get actions: %w", err)
	}
	actions := make([]warlock.Action, 0, len(raw))
	for id, data := range raw {
		var a warlock.Action
		if err := json.Unmarshal(data, &a); err != nil {
			log.Warn().Err(err).Str("roomId", gs.RoomID).Str("playerId", id).Msg("Dropping undecodable action")
			continue
		}
		a.ActorID = id
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].Seq < actions[j].Seq })
	for _, a := range actions {
		if err := room.RestoreAction(a); err != nil {
			log.Warn().Err(err).Str("roomId", gs.RoomID).Str("playerId", a.ActorID).Msg("Dropping stale action")
		}
	}
	return nil
}

func (s *RoundService) saveState(ctx context.Context, room *warlock.Room) error {
	data, err := json.Marshal(room.State())
	if err != nil {
		return fmt.Errorf("marshal room state: %w", err)
	}
	if err := s.cache.SetRoomState(ctx, room.State().RoomID, data); err != nil {
		return fmt.Errorf("set room state: %w", err)
	}
	return nil
}

func playerIDs(gs *warlock.GameState) []string {
	ids := make([]string, len(gs.Players))
	for i, p := range gs.Players {
		ids[i] = p.ID
	}
	return ids
}

// sendViews delivers each player their own view of the room.
func (s *RoundService) sendViews(room *warlock.Room, eventType string, extra map[string]any) {
	gs := room.State()
	for _, p := range gs.Players {
		data := map[string]any{"view": room.ViewFor(p.ID)}
		for k, v := range extra {
			data[k] = v
		}
		s.broadcaster.SendToUser(p.ID, gs.RoomID, eventType, data)
	}
}

// readyToResolve reports whether the action phase can end early.
func readyToResolve(room *warlock.Room) bool {
	gs := room.State()
	if gs.Phase != warlock.PhaseAction {
		return false
	}
	eligible := 0
	for _, p := range gs.Players {
		if room.IsPlayerEligibleThisRound(p.ID) {
			eligible++
		}
	}
	return eligible > 0 && room.AllSubmitted()
}

// readyToAdvance reports whether the results phase can end early.
func readyToAdvance(room *warlock.Room) bool {
	gs := room.State()
	if gs.Phase != warlock.PhaseResults {
		return false
	}
	waiting := 0
	for _, p := range gs.Players {
		if p.Alive && p.Connected {
			waiting++
		}
	}
	return waiting > 0 && room.AllReady()
}

// openRound persists a freshly opened action phase and arms its timer.
func (s *RoundService) openRound(ctx context.Context, rm *model.Room, room *warlock.Room) error {
	gs := room.State()
	stateJSON, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("marshal round state: %w", err)
	}
	deadline := s.now().Add(parseDuration(rm.ActionTimeout, defaultActionTimeout))
	if _, err := s.roundRepo.CreateRound(ctx, rm.ID, gs.Round, stateJSON, deadline); err != nil {
		return fmt.Errorf("create round: %w", err)
	}
	if err := s.cache.ClearRoundData(ctx, rm.ID, playerIDs(gs)); err != nil {
		return fmt.Errorf("clear round data: %w", err)
	}
	if err := s.cache.SetRoomState(ctx, rm.ID, stateJSON); err != nil {
		return fmt.Errorf("set room state: %w", err)
	}
	if err := s.cache.SetTimer(ctx, rm.ID, deadline); err != nil {
		return fmt.Errorf("set timer: %w", err)
	}

	log.Info().Str("roomId", rm.ID).Int("round", gs.Round).Time("deadline", deadline).Msg("Round opened")
	s.sendViews(room, EventRoundStarted, map[string]any{
		"round":    gs.Round,
		"deadline": deadline,
	})
	return nil
}

// HandleDeadline is called when a room's timer fires. It resolves the
// action phase or advances past the results phase, whichever is due.
func (s *RoundService) HandleDeadline(ctx context.Context, roomID string) error {
	mu := s.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	rd, err := s.roundRepo.CurrentRound(ctx, roomID)
	if err != nil {
		return fmt.Errorf("current round: %w", err)
	}
	if rd == nil {
		return nil
	}
	if rd.ResolvedAt == nil {
		return s.resolveLocked(ctx, roomID, false)
	}
	return s.advanceLocked(ctx, roomID, false)
}

// ResolveRoundEarly resolves the current round without waiting for the deadline.
func (s *RoundService) ResolveRoundEarly(ctx context.Context, roomID string) error {
	mu := s.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()
	return s.resolveLocked(ctx, roomID, true)
}

// resolveLocked resolves the open round. When early is false the deadline
// must have passed, otherwise it is a no-op. Callers hold the room lock.
func (s *RoundService) resolveLocked(ctx context.Context, roomID string, early bool) error {
	rm, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("find room: %w", err)
	}
	if rm == nil || rm.Status != model.RoomActive {
		return nil
	}
	rd, err := s.roundRepo.CurrentRound(ctx, roomID)
	if err != nil {
		return fmt.Errorf("current round: %w", err)
	}
	if rd == nil || rd.ResolvedAt != nil {
		return nil
	}
	if !early && s.now().Before(rd.Deadline) {
		log.Debug().Str("roomId", roomID).Int("round", rd.Number).Msg("Deadline not reached, skipping resolution")
		return nil
	}

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.State().Phase != warlock.PhaseAction {
		return nil
	}
	res, err := room.ResolveRound()
	if err != nil {
		return fmt.Errorf("resolve round: %w", err)
	}
	gs := room.State()

	stateJSON, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("marshal resolved state: %w", err)
	}
	logJSON, err := json.Marshal(res.Log)
	if err != nil {
		return fmt.Errorf("marshal round log: %w", err)
	}
	var resultsDeadline *time.Time
	if res.Result == warlock.ResultNone {
		d := s.now().Add(parseDuration(rm.ResultsTimeout, defaultResultsTimeout))
		resultsDeadline = &d
	}
	if err := s.roundRepo.ResolveRound(ctx, rd.ID, stateJSON, logJSON, resultsDeadline); err != nil {
		return fmt.Errorf("store resolved round: %w", err)
	}
	if err := s.cache.ClearRoundData(ctx, roomID, playerIDs(gs)); err != nil {
		log.Warn().Err(err).Str("roomId", roomID).Msg("Failed to clear round data")
	}

	log.Info().Str("roomId", roomID).Int("round", res.Round).Bool("early", early).
		Int("deaths", len(res.Deaths)).Int("corrupted", len(res.Corrupted)).
		Str("result", string(res.Result)).Msg("Round resolved")

	extra := map[string]any{"round": res.Round}
	if resultsDeadline != nil {
		extra["deadline"] = *resultsDeadline
	}
	s.sendViews(room, EventRoundResolved, extra)

	if res.Result != warlock.ResultNone {
		return s.finishRoom(ctx, rm, room, nil)
	}
	if err := s.saveState(ctx, room); err != nil {
		return err
	}
	if err := s.cache.SetTimer(ctx, roomID, *resultsDeadline); err != nil {
		return fmt.Errorf("set results timer: %w", err)
	}
	return nil
}

// advanceLocked opens the next round once the results phase is over.
// Callers hold the room lock.
func (s *RoundService) advanceLocked(ctx context.Context, roomID string, early bool) error {
	rm, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("find room: %w", err)
	}
	if rm == nil || rm.Status != model.RoomActive {
		return nil
	}
	rd, err := s.roundRepo.CurrentRound(ctx, roomID)
	if err != nil {
		return fmt.Errorf("current round: %w", err)
	}
	if rd == nil || rd.ResolvedAt == nil {
		return nil
	}
	if !early && rd.ResultsDeadline != nil && s.now().Before(*rd.ResultsDeadline) {
		return nil
	}

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.State().Phase != warlock.PhaseResults {
		return nil
	}
	if err := room.BeginNextRound(); err != nil {
		return fmt.Errorf("begin next round: %w", err)
	}
	return s.openRound(ctx, rm, room)
}

// finishRoom records the result, credits player stats, and clears live data.
// rd is the round to attach the final state to when the game ended outside
// resolution; nil means the resolved round already holds it.
func (s *RoundService) finishRoom(ctx context.Context, rm *model.Room, room *warlock.Room, rd *model.Round) error {
	gs := room.State()
	if err := s.roomRepo.SetFinished(ctx, rm.ID, string(gs.Result)); err != nil {
		return fmt.Errorf("set finished: %w", err)
	}

	if rd != nil {
		stateJSON, err := json.Marshal(gs)
		if err != nil {
			return fmt.Errorf("marshal final state: %w", err)
		}
		var entries warlock.RoundLog
		for _, e := range gs.LastLog {
			if e.Round == gs.Round {
				entries = append(entries, e)
			}
		}
		logJSON, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("marshal final log: %w", err)
		}
		if err := s.roundRepo.ResolveRound(ctx, rd.ID, stateJSON, logJSON, nil); err != nil {
			return fmt.Errorf("store final round: %w", err)
		}
	}

	winners := make(map[string]bool)
	for _, id := range warlock.Winners(gs, gs.Result) {
		winners[id] = true
	}
	if gs.Result != warlock.ResultAbandoned {
		for _, p := range rm.Players {
			if err := s.userRepo.RecordResult(ctx, p.UserID, winners[p.UserID]); err != nil {
				log.Warn().Err(err).Str("userId", p.UserID).Msg("Failed to record game result")
			}
		}
	}

	teams := make(map[string]string, len(gs.Players))
	for _, p := range gs.Players {
		teams[p.ID] = string(p.Team)
	}
	winnerIDs := make([]string, 0, len(winners))
	for id := range winners {
		winnerIDs = append(winnerIDs, id)
	}
	sort.Strings(winnerIDs)

	log.Info().Str("roomId", rm.ID).Str("result", string(gs.Result)).Int("round", gs.Round).Msg("Game over")
	s.broadcaster.BroadcastRoomEvent(rm.ID, EventGameOver, map[string]any{
		"result":  gs.Result,
		"round":   gs.Round,
		"winners": winnerIDs,
		"teams":   teams,
	})

	ids := playerIDs(gs)
	for _, p := range rm.Players {
		ids = append(ids, p.UserID)
	}
	if err := s.cache.DeleteRoomData(ctx, rm.ID, ids); err != nil {
		log.Warn().Err(err).Str("roomId", rm.ID).Msg("Failed to delete room data")
	}
	return nil
}

// MarkReady records that a player is done reviewing the results. When every
// living, connected player is ready the next round opens at once.
func (s *RoundService) MarkReady(ctx context.Context, roomID, userID string) error {
	mu := s.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := room.PlayerReady(userID); err != nil {
		return err
	}
	if err := s.cache.MarkReady(ctx, roomID, userID); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	readyCount, total := 0, 0
	for _, p := range room.State().Players {
		if p.Alive && p.Connected {
			total++
			if p.Ready {
				readyCount++
			}
		}
	}
	s.broadcaster.BroadcastRoomEvent(roomID, EventPlayerReady, map[string]any{
		"player_id":   userID,
		"ready_count": readyCount,
		"total":       total,
	})

	if readyToAdvance(room) {
		log.Info().Str("roomId", roomID).Msg("All players ready, opening next round")
		return s.advanceLocked(ctx, roomID, true)
	}
	return nil
}

// SetPresence records a player's connection state. A disconnect that leaves
// every remaining player submitted or ready moves the room on immediately.
func (s *RoundService) SetPresence(ctx context.Context, roomID, userID string, connected bool) error {
	mu := s.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.State().Phase == warlock.PhaseGameOver || room.State().Player(userID) == nil {
		return nil
	}
	if err := s.cache.SetOffline(ctx, roomID, userID, !connected); err != nil {
		return fmt.Errorf("set offline: %w", err)
	}
	if err := room.SetConnected(userID, connected); err != nil {
		return err
	}

	s.broadcaster.BroadcastRoomEvent(roomID, EventPlayerPresence, map[string]any{
		"player_id": userID,
		"connected": connected,
	})

	if connected {
		return nil
	}
	switch {
	case readyToResolve(room):
		return s.resolveLocked(ctx, roomID, true)
	case readyToAdvance(room):
		return s.advanceLocked(ctx, roomID, true)
	}
	return nil
}

// RemovePlayer drops a player whose reconnect window lapsed. It is a no-op
// if they came back in the meantime.
func (s *RoundService) RemovePlayer(ctx context.Context, roomID, userID string) error {
	mu := s.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	rm, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("find room: %w", err)
	}
	if rm == nil || rm.Status == model.RoomFinished {
		return nil
	}
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	p := room.State().Player(userID)
	if p == nil || p.Connected {
		return nil
	}

	result, err := room.RemovePlayer(userID)
	if err != nil {
		return err
	}
	if err := s.cache.SetOffline(ctx, roomID, userID, false); err != nil {
		log.Warn().Err(err).Str("roomId", roomID).Msg("Failed to clear offline flag")
	}
	log.Info().Str("roomId", roomID).Str("playerId", userID).Str("result", string(result)).Msg("Removed disconnected player")

	if rm.Status != model.RoomActive {
		if err := s.roomRepo.RemovePlayer(ctx, roomID, userID); err != nil {
			return err
		}
		if err := s.saveState(ctx, room); err != nil {
			return err
		}
		s.broadcaster.BroadcastRoomEvent(roomID, EventRoomUpdated, map[string]any{"left": userID})
		return nil
	}

	s.broadcaster.BroadcastRoomEvent(roomID, EventPlayerPresence, map[string]any{
		"player_id": userID,
		"connected": false,
		"removed":   true,
	})
	if result != warlock.ResultNone {
		rd, err := s.roundRepo.CurrentRound(ctx, roomID)
		if err != nil {
			return fmt.Errorf("current round: %w", err)
		}
		return s.finishRoom(ctx, rm, room, rd)
	}
	if err := s.saveState(ctx, room); err != nil {
		return err
	}
	switch {
	case readyToResolve(room):
		return s.resolveLocked(ctx, roomID, true)
	case readyToAdvance(room):
		return s.advanceLocked(ctx, roomID, true)
	}
	return nil
}

// View returns the room as the viewer may see it.
func (s *RoundService) View(ctx context.Context, roomID, viewerID string) (*warlock.RoomView, error) {
	mu := s.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	v := room.ViewFor(viewerID)
	return &v, nil
}

// ListRounds returns the room's round history.
func (s *RoundService) ListRounds(ctx context.Context, roomID string) ([]model.Round, error) {
	rm, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if rm == nil {
		return nil, ErrRoomNotFound
	}
	return s.roundRepo.ListRounds(ctx, roomID)
}

// RoundLog returns the log of a resolved round filtered for the viewer.
// Once the room is finished every entry is public.
func (s *RoundService) RoundLog(ctx context.Context, roomID string, number int, viewerID string) (warlock.RoundLog, error) {
	rm, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if rm == nil {
		return nil, ErrRoomNotFound
	}
	rd, err := s.roundRepo.FindRound(ctx, roomID, number)
	if err != nil {
		return nil, err
	}
	if rd == nil {
		return nil, ErrRoundNotFound
	}
	if rd.Log == nil {
		return warlock.RoundLog{}, nil
	}

	var entries warlock.RoundLog
	if err := json.Unmarshal(rd.Log, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal round log: %w", err)
	}
	if rm.Status == model.RoomFinished {
		return entries, nil
	}
	return entries.VisibleTo(viewerID), nil
}

// RecoverActiveRooms restores live state and timers for active rooms after a
// restart. State already in Redis is left alone.
func (s *RoundService) RecoverActiveRooms(ctx context.Context) error {
	rooms, err := s.roomRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active rooms: %w", err)
	}
	if len(rooms) == 0 {
		log.Info().Msg("No active rooms to recover")
		return nil
	}
	log.Info().Int("count", len(rooms)).Msg("Recovering active rooms after restart")

	for _, rm := range rooms {
		rd, err := s.roundRepo.CurrentRound(ctx, rm.ID)
		if err != nil {
			log.Error().Err(err).Str("roomId", rm.ID).Msg("Failed to get current round during recovery")
			continue
		}
		if rd == nil {
			log.Warn().Str("roomId", rm.ID).Msg("Active room has no rounds, skipping")
			continue
		}

		cached, err := s.cache.GetRoomState(ctx, rm.ID)
		if err != nil {
			log.Error().Err(err).Str("roomId", rm.ID).Msg("Failed to read cached state during recovery")
			continue
		}
		if cached == nil {
			state := rd.StateBefore
			if rd.ResolvedAt != nil && rd.StateAfter != nil {
				state = rd.StateAfter
			}
			if err := s.cache.SetRoomState(ctx, rm.ID, state); err != nil {
				log.Error().Err(err).Str("roomId", rm.ID).Msg("Failed to restore room state")
				continue
			}
		}

		deadline := rd.Deadline
		if rd.ResolvedAt != nil && rd.ResultsDeadline != nil {
			deadline = *rd.ResultsDeadline
		}
		if s.now().Before(deadline) {
			if err := s.cache.SetTimer(ctx, rm.ID, deadline); err != nil {
				log.Error().Err(err).Str("roomId", rm.ID).Msg("Failed to restore timer")
			}
		}

		log.Info().Str("roomId", rm.ID).Int("round", rd.Number).
			Bool("resolved", rd.ResolvedAt != nil).Time("deadline", deadline).
			Msg("Recovered room state")
	}
	return nil
}

// toPgInterval converts Go-style duration strings (e.g. "45s", "2m") to
// PostgreSQL interval format. Returns the default if input is empty or invalid.
func toPgInterval(s string, def time.Duration) string {
	d, err := time.ParseDuration(s)
	if s == "" || err != nil || d <= 0 {
		d = def
	}
	return fmt.Sprintf("%d seconds", int(d.Seconds()))
}

// parseDuration converts Postgres interval strings like "00:01:30" or
// "90 seconds" and Go duration strings like "90s" to time.Duration.
func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d
	}
	if n, ok := strings.CutSuffix(s, " seconds"); ok {
		if sec, err := strconv.Atoi(n); err == nil {
			return time.Duration(sec) * time.Second
		}
	}
	parts := strings.Split(s, ":")
	if len(parts) == 3 {
		h, e1 := strconv.Atoi(parts[0])
		m, e2 := strconv.Atoi(parts[1])
		sec, e3 := strconv.Atoi(parts[2])
		if e1 == nil && e2 == nil && e3 == nil {
			return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
		}
	}
	return def
}
