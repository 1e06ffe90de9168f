package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/freeeve/warlock/api/internal/model"
)

type mockUserRepo struct {
	users   map[string]*model.User
	results map[string][]bool
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User), results: make(map[string][]bool)}
}

func (m *mockUserRepo) add(id, name string) {
	m.users[id] = &model.User{ID: id, DisplayName: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			u.DisplayName = displayName
			return u, nil
		}
	}
	u := &model.User{
		ID:          fmt.Sprintf("user-%d", len(m.users)+1),
		Provider:    provider,
		ProviderID:  providerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.DisplayName = displayName
	return nil
}

func (m *mockUserRepo) RecordResult(_ context.Context, id string, won bool) error {
	m.results[id] = append(m.results[id], won)
	if u, ok := m.users[id]; ok {
		u.GamesPlayed++
		if won {
			u.GamesWon++
		}
	}
	return nil
}

type mockRoomRepo struct {
	users   *mockUserRepo
	rooms   map[string]*model.Room
	players map[string][]model.RoomPlayer
}

func newMockRoomRepo(users *mockUserRepo) *mockRoomRepo {
	return &mockRoomRepo{
		users:   users,
		rooms:   make(map[string]*model.Room),
		players: make(map[string][]model.RoomPlayer),
	}
}

func (m *mockRoomRepo) Create(_ context.Context, name, creatorID, actionTimeout, resultsTimeout string) (*model.Room, error) {
	rm := &model.Room{
		ID:             fmt.Sprintf("room-%d", len(m.rooms)+1),
		Name:           name,
		CreatorID:      creatorID,
		Status:         model.RoomLobby,
		ActionTimeout:  actionTimeout,
		ResultsTimeout: resultsTimeout,
		CreatedAt:      time.Now(),
	}
	m.rooms[rm.ID] = rm
	cp := *rm
	return &cp, nil
}

func (m *mockRoomRepo) FindByID(_ context.Context, id string) (*model.Room, error) {
	rm, ok := m.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *rm
	cp.Players = append([]model.RoomPlayer(nil), m.players[id]...)
	return &cp, nil
}

func (m *mockRoomRepo) list(keep func(*model.Room) bool) []model.Room {
	var result []model.Room
	for _, rm := range m.rooms {
		if keep(rm) {
			result = append(result, *rm)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *mockRoomRepo) ListOpen(_ context.Context) ([]model.Room, error) {
	return m.list(func(rm *model.Room) bool {
		return rm.Status == model.RoomLobby || rm.Status == model.RoomCharacterSelect
	}), nil
}

func (m *mockRoomRepo) ListByUser(_ context.Context, userID string) ([]model.Room, error) {
	return m.list(func(rm *model.Room) bool {
		if rm.CreatorID == userID {
			return true
		}
		for _, p := range m.players[rm.ID] {
			if p.UserID == userID {
				return true
			}
		}
		return false
	}), nil
}

func (m *mockRoomRepo) ListFinished(_ context.Context) ([]model.Room, error) {
	return m.list(func(rm *model.Room) bool { return rm.Status == model.RoomFinished }), nil
}

func (m *mockRoomRepo) ListActive(_ context.Context) ([]model.Room, error) {
	rooms := m.list(func(rm *model.Room) bool { return rm.Status == model.RoomActive })
	for i := range rooms {
		rooms[i].Players = append([]model.RoomPlayer(nil), m.players[rooms[i].ID]...)
	}
	return rooms, nil
}

func (m *mockRoomRepo) AddPlayer(_ context.Context, roomID, userID string) error {
	for _, p := range m.players[roomID] {
		if p.UserID == userID {
			return nil
		}
	}
	name := ""
	if u, ok := m.users.users[userID]; ok {
		name = u.DisplayName
	}
	m.players[roomID] = append(m.players[roomID], model.RoomPlayer{
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: name,
		JoinedAt:    time.Now(),
	})
	return nil
}

func (m *mockRoomRepo) RemovePlayer(_ context.Context, roomID, userID string) error {
	players := m.players[roomID]
	for i, p := range players {
		if p.UserID == userID {
			m.players[roomID] = append(players[:i:i], players[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockRoomRepo) SetCharacter(_ context.Context, roomID, userID, race, class string) error {
	for i, p := range m.players[roomID] {
		if p.UserID == userID {
			m.players[roomID][i].Race = race
			m.players[roomID][i].Class = class
		}
	}
	return nil
}

func (m *mockRoomRepo) SetStatus(_ context.Context, roomID, status string) error {
	if rm, ok := m.rooms[roomID]; ok {
		rm.Status = status
	}
	return nil
}

func (m *mockRoomRepo) SetActive(_ context.Context, roomID string, teams map[string]string) error {
	for i, p := range m.players[roomID] {
		m.players[roomID][i].Team = teams[p.UserID]
	}
	if rm, ok := m.rooms[roomID]; ok {
		now := time.Now()
		rm.Status = model.RoomActive
		rm.StartedAt = &now
	}
	return nil
}

func (m *mockRoomRepo) SetFinished(_ context.Context, roomID, result string) error {
	if rm, ok := m.rooms[roomID]; ok {
		now := time.Now()
		rm.Status = model.RoomFinished
		rm.Result = result
		rm.FinishedAt = &now
	}
	return nil
}

func (m *mockRoomRepo) Delete(_ context.Context, roomID string) error {
	delete(m.rooms, roomID)
	delete(m.players, roomID)
	return nil
}

type mockRoundRepo struct {
	rounds map[string][]*model.Round
	seq    int
}

func newMockRoundRepo() *mockRoundRepo {
	return &mockRoundRepo{rounds: make(map[string][]*model.Round)}
}

func (m *mockRoundRepo) CreateRound(_ context.Context, roomID string, number int, stateBefore json.RawMessage, deadline time.Time) (*model.Round, error) {
	m.seq++
	rd := &model.Round{
		ID:          fmt.Sprintf("round-%d", m.seq),
		RoomID:      roomID,
		Number:      number,
		StateBefore: stateBefore,
		Deadline:    deadline,
		CreatedAt:   time.Now(),
	}
	m.rounds[roomID] = append(m.rounds[roomID], rd)
	return rd, nil
}

func (m *mockRoundRepo) CurrentRound(_ context.Context, roomID string) (*model.Round, error) {
	rounds := m.rounds[roomID]
	if len(rounds) == 0 {
		return nil, nil
	}
	cp := *rounds[len(rounds)-1]
	return &cp, nil
}

func (m *mockRoundRepo) FindRound(_ context.Context, roomID string, number int) (*model.Round, error) {
	for _, rd := range m.rounds[roomID] {
		if rd.Number == number {
			cp := *rd
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockRoundRepo) ListRounds(_ context.Context, roomID string) ([]model.Round, error) {
	var result []model.Round
	for _, rd := range m.rounds[roomID] {
		result = append(result, *rd)
	}
	return result, nil
}

func (m *mockRoundRepo) ResolveRound(_ context.Context, roundID string, stateAfter, log json.RawMessage, resultsDeadline *time.Time) error {
	for _, rounds := range m.rounds {
		for _, rd := range rounds {
			if rd.ID == roundID {
				now := time.Now()
				rd.StateAfter = stateAfter
				rd.Log = log
				rd.ResultsDeadline = resultsDeadline
				rd.ResolvedAt = &now
				return nil
			}
		}
	}
	return fmt.Errorf("round %s not found", roundID)
}

func (m *mockRoundRepo) ListExpired(_ context.Context) ([]model.Round, error) {
	var result []model.Round
	now := time.Now()
	for _, rounds := range m.rounds {
		rd := rounds[len(rounds)-1]
		if rd.ResolvedAt == nil && rd.Deadline.Before(now) {
			result = append(result, *rd)
		} else if rd.ResolvedAt != nil && rd.ResultsDeadline != nil && rd.ResultsDeadline.Before(now) {
			result = append(result, *rd)
		}
	}
	return result, nil
}

// last returns the stored (mutable) latest round of a room.
func (m *mockRoundRepo) last(roomID string) *model.Round {
	rounds := m.rounds[roomID]
	if len(rounds) == 0 {
		return nil
	}
	return rounds[len(rounds)-1]
}

type mockCache struct {
	states    map[string]json.RawMessage
	actions   map[string]map[string]json.RawMessage
	submitted map[string]map[string]bool
	ready     map[string]map[string]bool
	offline   map[string]map[string]bool
	timers    map[string]time.Time
}

func newMockCache() *mockCache {
	return &mockCache{
		states:    make(map[string]json.RawMessage),
		actions:   make(map[string]map[string]json.RawMessage),
		submitted: make(map[string]map[string]bool),
		ready:     make(map[string]map[string]bool),
		offline:   make(map[string]map[string]bool),
		timers:    make(map[string]time.Time),
	}
}

func addTo(sets map[string]map[string]bool, roomID, id string) {
	if sets[roomID] == nil {
		sets[roomID] = make(map[string]bool)
	}
	sets[roomID][id] = true
}

func members(set map[string]bool) []string {
	var ids []string
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *mockCache) SetRoomState(_ context.Context, roomID string, state json.RawMessage) error {
	c.states[roomID] = state
	return nil
}

func (c *mockCache) GetRoomState(_ context.Context, roomID string) (json.RawMessage, error) {
	return c.states[roomID], nil
}

func (c *mockCache) SetAction(_ context.Context, roomID, playerID string, action json.RawMessage) error {
	if c.actions[roomID] == nil {
		c.actions[roomID] = make(map[string]json.RawMessage)
	}
	c.actions[roomID][playerID] = action
	return nil
}

func (c *mockCache) GetActions(_ context.Context, roomID string, playerIDs []string) (map[string]json.RawMessage, error) {
	result := make(map[string]json.RawMessage)
	for _, id := range playerIDs {
		if a, ok := c.actions[roomID][id]; ok {
			result[id] = a
		}
	}
	return result, nil
}

func (c *mockCache) MarkSubmitted(_ context.Context, roomID, playerID string) error {
	addTo(c.submitted, roomID, playerID)
	return nil
}

func (c *mockCache) SubmittedPlayers(_ context.Context, roomID string) ([]string, error) {
	return members(c.submitted[roomID]), nil
}

func (c *mockCache) MarkReady(_ context.Context, roomID, playerID string) error {
	addTo(c.ready, roomID, playerID)
	return nil
}

func (c *mockCache) ReadyPlayers(_ context.Context, roomID string) ([]string, error) {
	return members(c.ready[roomID]), nil
}

func (c *mockCache) SetOffline(_ context.Context, roomID, playerID string, offline bool) error {
	if offline {
		addTo(c.offline, roomID, playerID)
	} else if c.offline[roomID] != nil {
		delete(c.offline[roomID], playerID)
	}
	return nil
}

func (c *mockCache) OfflinePlayers(_ context.Context, roomID string) ([]string, error) {
	return members(c.offline[roomID]), nil
}

func (c *mockCache) SetTimer(_ context.Context, roomID string, deadline time.Time) error {
	c.timers[roomID] = deadline
	return nil
}

func (c *mockCache) ClearTimer(_ context.Context, roomID string) error {
	delete(c.timers, roomID)
	return nil
}

func (c *mockCache) ClearRoundData(_ context.Context, roomID string, _ []string) error {
	delete(c.actions, roomID)
	delete(c.submitted, roomID)
	delete(c.ready, roomID)
	delete(c.timers, roomID)
	return nil
}

func (c *mockCache) DeleteRoomData(ctx context.Context, roomID string, playerIDs []string) error {
	c.ClearRoundData(ctx, roomID, playerIDs)
	delete(c.states, roomID)
	delete(c.offline, roomID)
	return nil
}

type sentEvent struct {
	userID    string
	roomID    string
	eventType string
	data      any
}

// recordingBroadcaster captures every event for assertions.
type recordingBroadcaster struct {
	room []sentEvent
	user []sentEvent
}

func (b *recordingBroadcaster) BroadcastRoomEvent(roomID string, eventType string, data any) {
	b.room = append(b.room, sentEvent{roomID: roomID, eventType: eventType, data: data})
}

func (b *recordingBroadcaster) SendToUser(userID, roomID string, eventType string, data any) {
	b.user = append(b.user, sentEvent{userID: userID, roomID: roomID, eventType: eventType, data: data})
}

func (b *recordingBroadcaster) count(eventType string) int {
	n := 0
	for _, e := range b.room {
		if e.eventType == eventType {
			n++
		}
	}
	for _, e := range b.user {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

func (b *recordingBroadcaster) lastRoom(eventType string) (sentEvent, bool) {
	for i := len(b.room) - 1; i >= 0; i-- {
		if b.room[i].eventType == eventType {
			return b.room[i], true
		}
	}
	return sentEvent{}, false
}
