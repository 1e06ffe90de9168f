package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/freeeve/warlock/api/internal/model"
	"github.com/freeeve/warlock/api/internal/repository"
)

// --- Mock Repositories ---

type mockUserRepo struct {
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) add(id, name string) {
	m.users[id] = &model.User{ID: id, DisplayName: name}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
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
			u.AvatarURL = avatarURL
			return u, nil
		}
	}
	m.seq++
	u := &model.User{
		ID:          fmt.Sprintf("dev-user-%d", m.seq),
		Provider:    provider,
		ProviderID:  providerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.DisplayName = displayName
	return nil
}

func (m *mockUserRepo) RecordResult(_ context.Context, id string, won bool) error {
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

func (m *mockRoomRepo) byStatus(statuses ...string) []model.Room {
	var result []model.Room
	for _, rm := range m.rooms {
		for _, s := range statuses {
			if rm.Status == s {
				result = append(result, *rm)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *mockRoomRepo) ListOpen(_ context.Context) ([]model.Room, error) {
	return m.byStatus(model.RoomLobby, model.RoomCharacterSelect), nil
}

func (m *mockRoomRepo) ListByUser(_ context.Context, userID string) ([]model.Room, error) {
	var result []model.Room
	for id, players := range m.players {
		for _, p := range players {
			if p.UserID == userID {
				result = append(result, *m.rooms[id])
			}
		}
	}
	return result, nil
}

func (m *mockRoomRepo) ListFinished(_ context.Context) ([]model.Room, error) {
	return m.byStatus(model.RoomFinished), nil
}

func (m *mockRoomRepo) ListActive(_ context.Context) ([]model.Room, error) {
	return m.byStatus(model.RoomActive), nil
}

func (m *mockRoomRepo) AddPlayer(_ context.Context, roomID, userID string) error {
	name := ""
	if u, ok := m.users.users[userID]; ok {
		name = u.DisplayName
	}
	m.players[roomID] = append(m.players[roomID], model.RoomPlayer{RoomID: roomID, UserID: userID, DisplayName: name})
	return nil
}

func (m *mockRoomRepo) RemovePlayer(_ context.Context, roomID, userID string) error {
	players := m.players[roomID]
	for i, p := range players {
		if p.UserID == userID {
			m.players[roomID] = append(players[:i:i], players[i+1:]...)
			break
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
		rm.Status = model.RoomActive
	}
	return nil
}

func (m *mockRoomRepo) SetFinished(_ context.Context, roomID, result string) error {
	if rm, ok := m.rooms[roomID]; ok {
		rm.Status = model.RoomFinished
		rm.Result = result
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
}

func newMockRoundRepo() *mockRoundRepo {
	return &mockRoundRepo{rounds: make(map[string][]*model.Round)}
}

func (m *mockRoundRepo) CreateRound(_ context.Context, roomID string, number int, stateBefore json.RawMessage, deadline time.Time) (*model.Round, error) {
	rd := &model.Round{
		ID:          fmt.Sprintf("%s-round-%d", roomID, number),
		RoomID:      roomID,
		Number:      number,
		StateBefore: stateBefore,
		Deadline:    deadline,
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
	return nil, nil
}

// mockCache keeps per-room sets keyed by kind ("submitted", "ready", "offline").
type mockCache struct {
	states  map[string]json.RawMessage
	actions map[string]map[string]json.RawMessage
	sets    map[string]map[string]bool
}

func newMockCache() *mockCache {
	return &mockCache{
		states:  make(map[string]json.RawMessage),
		actions: make(map[string]map[string]json.RawMessage),
		sets:    make(map[string]map[string]bool),
	}
}

func (c *mockCache) set(roomID, kind, id string, on bool) {
	key := roomID + "/" + kind
	if c.sets[key] == nil {
		c.sets[key] = make(map[string]bool)
	}
	if on {
		c.sets[key][id] = true
	} else {
		delete(c.sets[key], id)
	}
}

func (c *mockCache) members(roomID, kind string) []string {
	var ids []string
	for id := range c.sets[roomID+"/"+kind] {
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
	c.set(roomID, "submitted", playerID, true)
	return nil
}

func (c *mockCache) SubmittedPlayers(_ context.Context, roomID string) ([]string, error) {
	return c.members(roomID, "submitted"), nil
}

func (c *mockCache) MarkReady(_ context.Context, roomID, playerID string) error {
	c.set(roomID, "ready", playerID, true)
	return nil
}

func (c *mockCache) ReadyPlayers(_ context.Context, roomID string) ([]string, error) {
	return c.members(roomID, "ready"), nil
}

func (c *mockCache) SetOffline(_ context.Context, roomID, playerID string, offline bool) error {
	c.set(roomID, "offline", playerID, offline)
	return nil
}

func (c *mockCache) OfflinePlayers(_ context.Context, roomID string) ([]string, error) {
	return c.members(roomID, "offline"), nil
}

func (c *mockCache) SetTimer(context.Context, string, time.Time) error { return nil }

func (c *mockCache) ClearTimer(context.Context, string) error { return nil }

func (c *mockCache) ClearRoundData(_ context.Context, roomID string, _ []string) error {
	delete(c.actions, roomID)
	delete(c.sets, roomID+"/submitted")
	delete(c.sets, roomID+"/ready")
	return nil
}

func (c *mockCache) DeleteRoomData(ctx context.Context, roomID string, playerIDs []string) error {
	c.ClearRoundData(ctx, roomID, playerIDs)
	delete(c.states, roomID)
	delete(c.sets, roomID+"/offline")
	return nil
}

type mockMessageRepo struct {
	messages []model.Message
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{}
}

func (m *mockMessageRepo) Create(_ context.Context, roomID, senderID, recipientID, content string, round int) (*model.Message, error) {
	msg := model.Message{
		ID:          fmt.Sprintf("msg-%d", len(m.messages)+1),
		RoomID:      roomID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		Round:       round,
		CreatedAt:   time.Now(),
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *mockMessageRepo) ListByRoom(_ context.Context, roomID, userID string) ([]model.Message, error) {
	var result []model.Message
	for _, msg := range m.messages {
		if msg.RoomID != roomID {
			continue
		}
		if msg.RecipientID == "" || msg.SenderID == userID || msg.RecipientID == userID {
			result = append(result, msg)
		}
	}
	return result, nil
}
