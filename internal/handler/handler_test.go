package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/freeeve/warlock/api/internal/auth"
	"github.com/freeeve/warlock/api/internal/model"
	"github.com/freeeve/warlock/api/internal/service"
	"github.com/freeeve/warlock/api/pkg/warlock"
)

// --- Helpers ---

func reqWithUserID(method, path string, body string, userID string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	ctx := auth.SetUserIDForTest(req.Context(), userID)
	return req.WithContext(ctx)
}

// roomReq builds a request against /rooms/{id}/... for userID.
func roomReq(method, roomID, suffix, body, userID string) *http.Request {
	req := reqWithUserID(method, "/rooms/"+roomID+suffix, body, userID)
	req.SetPathValue("id", roomID)
	return req
}

type apiEnv struct {
	users    *mockUserRepo
	rooms    *mockRoomRepo
	rounds   *mockRoundRepo
	cache    *mockCache
	messages *mockMessageRepo
	hub      *Hub

	roomH    *RoomHandler
	actionH  *ActionHandler
	roundH   *RoundHandler
	messageH *MessageHandler
}

func newAPIEnv() *apiEnv {
	e := &apiEnv{
		users:    newMockUserRepo(),
		rounds:   newMockRoundRepo(),
		cache:    newMockCache(),
		messages: newMockMessageRepo(),
		hub:      NewHub(),
	}
	for i := 1; i <= 4; i++ {
		e.users.add(fmt.Sprintf("u%d", i), fmt.Sprintf("Player %d", i))
	}
	e.rooms = newMockRoomRepo(e.users)

	roundSvc := service.NewRoundService(e.rooms, e.rounds, e.users, e.cache, e.hub, nil)
	roomSvc := service.NewRoomService(e.rooms, e.users, roundSvc, service.Timeouts{})
	e.roomH = NewRoomHandler(roomSvc, roundSvc)
	e.actionH = NewActionHandler(service.NewActionService(roundSvc), roundSvc)
	e.roundH = NewRoundHandler(roundSvc)
	e.messageH = NewMessageHandler(e.messages, e.rooms, e.rounds, e.hub)
	return e
}

// createRoom creates a room owned by u1 and seats u2 and u3.
func (e *apiEnv) createRoom(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	e.roomH.CreateRoom(rec, reqWithUserID(http.MethodPost, "/rooms", `{"name":"Crypt"}`, "u1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var rm model.Room
	json.Unmarshal(rec.Body.Bytes(), &rm)
	for _, u := range []string{"u2", "u3"} {
		rec = httptest.NewRecorder()
		e.roomH.JoinRoom(rec, roomReq(http.MethodPost, rm.ID, "/join", "", u))
		if rec.Code != http.StatusOK {
			t.Fatalf("join %s: %d %s", u, rec.Code, rec.Body.String())
		}
	}
	return rm.ID
}

// startRoom creates a room and starts it with three human priests.
func (e *apiEnv) startRoom(t *testing.T) string {
	t.Helper()
	roomID := e.createRoom(t)
	rec := httptest.NewRecorder()
	e.roomH.OpenCharacterSelect(rec, roomReq(http.MethodPost, roomID, "/character-select", "", "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("character select: %d %s", rec.Code, rec.Body.String())
	}
	for _, u := range []string{"u1", "u2", "u3"} {
		rec = httptest.NewRecorder()
		e.roomH.SelectCharacter(rec, roomReq(http.MethodPut, roomID, "/character", `{"race":"human","class":"priest"}`, u))
		if rec.Code != http.StatusOK {
			t.Fatalf("select %s: %d %s", u, rec.Code, rec.Body.String())
		}
	}
	rec = httptest.NewRecorder()
	e.roomH.StartRoom(rec, roomReq(http.MethodPost, roomID, "/start", "", "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	return roomID
}

// --- User Handler Tests ---

func TestGetMe(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &model.User{
		ID:          "user-1",
		DisplayName: "Alice",
		Provider:    "google",
	}
	h := NewUserHandler(repo)

	req := reqWithUserID(http.MethodGet, "/users/me", "", "user-1")
	rec := httptest.NewRecorder()
	h.GetMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var user model.User
	json.Unmarshal(rec.Body.Bytes(), &user)
	if user.DisplayName != "Alice" {
		t.Errorf("expected Alice, got %s", user.DisplayName)
	}
}

func TestGetMeNotFound(t *testing.T) {
	h := NewUserHandler(newMockUserRepo())

	req := reqWithUserID(http.MethodGet, "/users/me", "", "nonexistent")
	rec := httptest.NewRecorder()
	h.GetMe(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateMe(t *testing.T) {
	repo := newMockUserRepo()
	repo.add("user-1", "Alice")
	h := NewUserHandler(repo)

	req := reqWithUserID(http.MethodPatch, "/users/me", `{"display_name":"Bob"}`, "user-1")
	rec := httptest.NewRecorder()
	h.UpdateMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var user model.User
	json.Unmarshal(rec.Body.Bytes(), &user)
	if user.DisplayName != "Bob" {
		t.Errorf("expected Bob, got %s", user.DisplayName)
	}
}

func TestUpdateMeRejectsBadInput(t *testing.T) {
	repo := newMockUserRepo()
	repo.add("user-1", "Alice")
	h := NewUserHandler(repo)

	for _, body := range []string{`{"display_name":""}`, `{"display_name":"   "}`, `{"display_name":"` + strings.Repeat("x", 33) + `"}`, "not json"} {
		rec := httptest.NewRecorder()
		h.UpdateMe(rec, reqWithUserID(http.MethodPatch, "/users/me", body, "user-1"))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestUpdateMeUnknownUser(t *testing.T) {
	h := NewUserHandler(newMockUserRepo())
	rec := httptest.NewRecorder()
	h.UpdateMe(rec, reqWithUserID(http.MethodPatch, "/users/me", `{"display_name":"Bob"}`, "ghost"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetUserHidesIdentity(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &model.User{ID: "user-1", DisplayName: "Alice", Provider: "google", ProviderID: "g-123", GamesWon: 2}
	h := NewUserHandler(repo)

	req := reqWithUserID(http.MethodGet, "/users/user-1", "", "user-2")
	req.SetPathValue("id", "user-1")
	rec := httptest.NewRecorder()
	h.GetUser(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "g-123") || strings.Contains(rec.Body.String(), "provider") {
		t.Errorf("profile leaks sign-in identity: %s", rec.Body.String())
	}
	var p model.Profile
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.DisplayName != "Alice" || p.GamesWon != 2 {
		t.Errorf("profile = %+v", p)
	}
}

// --- Room Handler Tests ---

func TestCreateRoom(t *testing.T) {
	e := newAPIEnv()

	rec := httptest.NewRecorder()
	e.roomH.CreateRoom(rec, reqWithUserID(http.MethodPost, "/rooms", `{"name":"Crypt","action_timeout":"45s"}`, "u1"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var rm model.Room
	json.Unmarshal(rec.Body.Bytes(), &rm)
	if rm.Name != "Crypt" || rm.ActionTimeout != "45 seconds" {
		t.Errorf("room = %+v", rm)
	}
	if len(rm.Players) != 1 || rm.Players[0].UserID != "u1" {
		t.Errorf("players = %+v, want the creator", rm.Players)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	e := newAPIEnv()
	tests := []struct {
		body   string
		userID string
		want   int
	}{
		{`{"name":""}`, "u1", http.StatusBadRequest},
		{"not json", "u1", http.StatusBadRequest},
		{`{"name":"Crypt"}`, "ghost", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		e.roomH.CreateRoom(rec, reqWithUserID(http.MethodPost, "/rooms", tt.body, tt.userID))
		if rec.Code != tt.want {
			t.Errorf("%s as %s: got %d, want %d", tt.body, tt.userID, rec.Code, tt.want)
		}
	}
}

func TestListRoomsEmpty(t *testing.T) {
	e := newAPIEnv()

	rec := httptest.NewRecorder()
	e.roomH.ListRooms(rec, reqWithUserID(http.MethodGet, "/rooms", "", "u1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected [], got %s", body)
	}
}

func TestRoomNotFound(t *testing.T) {
	e := newAPIEnv()
	handlers := map[string]http.HandlerFunc{
		"get":    e.roomH.GetRoom,
		"join":   e.roomH.JoinRoom,
		"start":  e.roomH.StartRoom,
		"delete": e.roomH.DeleteRoom,
		"rounds": e.roundH.ListRounds,
	}
	for name, fn := range handlers {
		rec := httptest.NewRecorder()
		fn(rec, roomReq(http.MethodPost, "nonexistent", "", "", "u1"))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", name, rec.Code)
		}
	}
}

func TestLobbyErrors(t *testing.T) {
	e := newAPIEnv()
	roomID := e.createRoom(t)

	rec := httptest.NewRecorder()
	e.roomH.JoinRoom(rec, roomReq(http.MethodPost, roomID, "/join", "", "u2"))
	if rec.Code != http.StatusConflict {
		t.Errorf("double join: expected 409, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.roomH.OpenCharacterSelect(rec, roomReq(http.MethodPost, roomID, "/character-select", "", "u2"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-creator: expected 403, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.roomH.SelectCharacter(rec, roomReq(http.MethodPut, roomID, "/character", `{"race":"human"}`, "u1"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing class: expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.roomH.LeaveRoom(rec, roomReq(http.MethodPost, roomID, "/leave", "", "u4"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("leave without seat: expected 400, got %d", rec.Code)
	}
}

func TestGetRoomHidesTeams(t *testing.T) {
	e := newAPIEnv()
	roomID := e.startRoom(t)

	rec := httptest.NewRecorder()
	e.roomH.GetRoom(rec, roomReq(http.MethodGet, roomID, "", "", "u2"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Room model.Room       `json:"room"`
		View warlock.RoomView `json:"view"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, p := range resp.Room.Players {
		if p.Team != "" {
			t.Errorf("team of %s leaked: %s", p.UserID, p.Team)
		}
	}
	if resp.View.Phase != warlock.PhaseAction || resp.View.Round != 1 {
		t.Errorf("view = %s round %d", resp.View.Phase, resp.View.Round)
	}
	if resp.View.You == nil {
		t.Error("seated caller should get their own view")
	}
}

func TestDeleteRoom(t *testing.T) {
	e := newAPIEnv()
	roomID := e.createRoom(t)

	rec := httptest.NewRecorder()
	e.roomH.DeleteRoom(rec, roomReq(http.MethodDelete, roomID, "", "", "u1"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := e.rooms.rooms[roomID]; ok {
		t.Error("room still stored")
	}
}

// --- Action Handler Tests ---

func TestSubmitAction(t *testing.T) {
	e := newAPIEnv()
	roomID := e.startRoom(t)

	rec := httptest.NewRecorder()
	body := fmt.Sprintf(`{"ability_id":"slash","target_id":%q}`, warlock.MonsterID)
	e.actionH.SubmitAction(rec, roomReq(http.MethodPost, roomID, "/actions", body, "u2"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var action warlock.Action
	json.Unmarshal(rec.Body.Bytes(), &action)
	if action.ActorID != "u2" || action.AbilityID != "slash" {
		t.Errorf("action = %+v", action)
	}
	if len(e.cache.members(roomID, "submitted")) != 1 {
		t.Error("expected the submission recorded")
	}
}

func TestSubmitActionErrors(t *testing.T) {
	e := newAPIEnv()
	roomID := e.startRoom(t)
	tests := []struct {
		name   string
		body   string
		userID string
		want   int
	}{
		{"bad body", "not json", "u2", http.StatusBadRequest},
		{"missing ability", `{}`, "u2", http.StatusBadRequest},
		{"not a priest ability", `{"ability_id":"fireball","target_id":"monster"}`, "u2", http.StatusUnprocessableEntity},
		{"unknown ability", `{"ability_id":"summon_dragon"}`, "u2", http.StatusUnprocessableEntity},
		{"spectator", `{"ability_id":"pass"}`, "u4", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		e.actionH.SubmitAction(rec, roomReq(http.MethodPost, roomID, "/actions", tt.body, tt.userID))
		if rec.Code != tt.want {
			t.Errorf("%s: got %d, want %d (%s)", tt.name, rec.Code, tt.want, rec.Body.String())
		}
	}
}

func TestEligibility(t *testing.T) {
	e := newAPIEnv()
	roomID := e.startRoom(t)

	rec := httptest.NewRecorder()
	e.actionH.Eligibility(rec, roomReq(http.MethodGet, roomID, "/eligibility", "", "u3"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var el service.Eligibility
	json.Unmarshal(rec.Body.Bytes(), &el)
	if !el.Eligible || el.Round != 1 {
		t.Errorf("eligibility = %+v", el)
	}

	rec = httptest.NewRecorder()
	e.actionH.Eligibility(rec, roomReq(http.MethodGet, roomID, "/eligibility", "", "u4"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-player: expected 400, got %d", rec.Code)
	}
}

func TestMarkReadyOutsideResults(t *testing.T) {
	e := newAPIEnv()
	roomID := e.startRoom(t)

	rec := httptest.NewRecorder()
	e.actionH.MarkReady(rec, roomReq(http.MethodPost, roomID, "/ready", "", "u1"))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 during the action phase, got %d: %s", rec.Code, rec.Body.String())
	}
}

// --- Round Handler Tests ---

func TestRoundsAndLog(t *testing.T) {
	e := newAPIEnv()
	roomID := e.startRoom(t)
	for _, u := range []string{"u1", "u2", "u3"} {
		rec := httptest.NewRecorder()
		e.actionH.SubmitAction(rec, roomReq(http.MethodPost, roomID, "/actions", `{"ability_id":"pass"}`, u))
		if rec.Code != http.StatusOK {
			t.Fatalf("pass %s: %d %s", u, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	e.roundH.ListRounds(rec, roomReq(http.MethodGet, roomID, "/rounds", "", "u1"))
	var rounds []model.Round
	json.Unmarshal(rec.Body.Bytes(), &rounds)
	if len(rounds) != 1 || rounds[0].ResolvedAt == nil {
		t.Fatalf("rounds = %+v", rounds)
	}

	req := roomReq(http.MethodGet, roomID, "/rounds/1/log", "", "u2")
	req.SetPathValue("round", "1")
	rec = httptest.NewRecorder()
	e.roundH.RoundLog(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("log: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var entries []struct {
		Visibility warlock.Visibility `json:"visibility"`
	}
	json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) == 0 {
		t.Fatal("expected log entries")
	}
	for _, entry := range entries {
		if entry.Visibility.Scope == warlock.ScopePrivate && entry.Visibility.RecipientID != "u2" {
			t.Errorf("someone else's private entry returned to u2: %+v", entry)
		}
	}

	for round, want := range map[string]int{"x": http.StatusBadRequest, "0": http.StatusBadRequest, "9": http.StatusNotFound} {
		req := roomReq(http.MethodGet, roomID, "/rounds/"+round+"/log", "", "u2")
		req.SetPathValue("round", round)
		rec := httptest.NewRecorder()
		e.roundH.RoundLog(rec, req)
		if rec.Code != want {
			t.Errorf("round %s: got %d, want %d", round, rec.Code, want)
		}
	}
}

// --- Message Handler Tests ---

func TestSendAndListMessages(t *testing.T) {
	e := newAPIEnv()
	roomID := e.createRoom(t)

	rec := httptest.NewRecorder()
	e.messageH.SendMessage(rec, roomReq(http.MethodPost, roomID, "/messages", `{"content":"Hello everyone!"}`, "u1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.messageH.ListMessages(rec, roomReq(http.MethodGet, roomID, "/messages", "", "u2"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var messages []model.Message
	json.Unmarshal(rec.Body.Bytes(), &messages)
	if len(messages) != 1 || messages[0].Content != "Hello everyone!" {
		t.Fatalf("messages = %+v", messages)
	}
}

func TestPrivateMessageReachesOnlyBothParties(t *testing.T) {
	e := newAPIEnv()
	roomID := e.createRoom(t)
	conns := map[string]*WSConn{}
	for _, u := range []string{"u1", "u2", "u3"} {
		conns[u] = newTestConn(u)
		e.hub.Register(conns[u])
		e.hub.Subscribe(conns[u], roomID)
		defer e.hub.Unregister(conns[u])
	}

	rec := httptest.NewRecorder()
	e.messageH.SendMessage(rec, roomReq(http.MethodPost, roomID, "/messages", `{"recipient_id":"u2","content":"trust me"}`, "u1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	for _, u := range []string{"u1", "u2"} {
		if event := receive(t, conns[u]); event.Type != service.EventMessage {
			t.Errorf("%s got %s", u, event.Type)
		}
	}
	select {
	case <-conns["u3"].send:
		t.Error("u3 must not see a private message")
	default:
	}

	rec = httptest.NewRecorder()
	e.messageH.ListMessages(rec, roomReq(http.MethodGet, roomID, "/messages", "", "u3"))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("u3 listed %s", rec.Body.String())
	}
}

func TestSendMessageValidation(t *testing.T) {
	e := newAPIEnv()
	roomID := e.createRoom(t)
	tests := []struct {
		name   string
		roomID string
		body   string
		userID string
		want   int
	}{
		{"empty", roomID, `{"content":""}`, "u1", http.StatusBadRequest},
		{"too long", roomID, `{"content":"` + strings.Repeat("a", maxMessageLen+1) + `"}`, "u1", http.StatusBadRequest},
		{"not seated", roomID, `{"content":"hi"}`, "u4", http.StatusBadRequest},
		{"recipient not seated", roomID, `{"recipient_id":"u4","content":"hi"}`, "u1", http.StatusBadRequest},
		{"to self", roomID, `{"recipient_id":"u1","content":"hi"}`, "u1", http.StatusBadRequest},
		{"missing room", "nope", `{"content":"hi"}`, "u1", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		e.messageH.SendMessage(rec, roomReq(http.MethodPost, tt.roomID, "/messages", tt.body, tt.userID))
		if rec.Code != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
	if len(e.messages.messages) != 0 {
		t.Errorf("stored %d rejected messages", len(e.messages.messages))
	}
}

// --- Auth Handler Tests ---

func TestRefreshTokenValid(t *testing.T) {
	jwtMgr := auth.NewJWTManager("test-secret")
	h := NewAuthHandler(nil, jwtMgr, newMockUserRepo())

	refresh, _ := jwtMgr.GenerateRefreshToken("user-1")
	body := fmt.Sprintf(`{"refresh_token":"%s"}`, refresh)
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.RefreshToken(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tokens auth.TokenPair
	json.Unmarshal(rec.Body.Bytes(), &tokens)
	if tokens.AccessToken == "" {
		t.Error("expected non-empty access token")
	}
}

func TestRefreshTokenInvalid(t *testing.T) {
	jwtMgr := auth.NewJWTManager("test-secret")
	h := NewAuthHandler(nil, jwtMgr, newMockUserRepo())

	for body, want := range map[string]int{
		`{"refresh_token":"invalid"}`: http.StatusUnauthorized,
		"not json":                    http.StatusBadRequest,
	} {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.RefreshToken(rec, req)
		if rec.Code != want {
			t.Errorf("%s: got %d, want %d", body, rec.Code, want)
		}
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	jwtMgr := auth.NewJWTManager("test-secret")
	h := NewAuthHandler(nil, jwtMgr, newMockUserRepo())

	access, _ := jwtMgr.GenerateAccessToken("user-1")
	body := fmt.Sprintf(`{"refresh_token":"%s"}`, access)
	rec := httptest.NewRecorder()
	h.RefreshToken(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(body)))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestDevLogin(t *testing.T) {
	repo := newMockUserRepo()
	h := NewAuthHandler(nil, auth.NewJWTManager("test-secret"), repo)

	rec := httptest.NewRecorder()
	h.DevLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/dev?name=alice", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("without DEV_MODE: expected 404, got %d", rec.Code)
	}

	t.Setenv("DEV_MODE", "true")
	rec = httptest.NewRecorder()
	h.DevLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/dev?name=alice", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if u, _ := repo.FindByProviderID(context.Background(), "dev", "dev-alice"); u == nil || u.DisplayName != "alice" {
		t.Errorf("dev user = %+v", u)
	}
}

func TestGoogleLoginState(t *testing.T) {
	unconfigured := NewAuthHandler(auth.NewGoogleOAuth("", "", ""), auth.NewJWTManager("s"), newMockUserRepo())
	rec := httptest.NewRecorder()
	unconfigured.GoogleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unconfigured: expected 404, got %d", rec.Code)
	}

	h := NewAuthHandler(auth.NewGoogleOAuth("id", "secret", "http://localhost/cb"), auth.NewJWTManager("s"), newMockUserRepo())
	rec = httptest.NewRecorder()
	h.GoogleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != stateCookie || cookies[0].Value == "" {
		t.Fatalf("cookies = %+v", cookies)
	}
	if !strings.Contains(rec.Header().Get("Location"), "state="+cookies[0].Value) {
		t.Errorf("redirect %s does not carry the cookie state", rec.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=forged&code=abc", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.GoogleCallback(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("forged state: expected 400, got %d", rec.Code)
	}
}
