package model

import (
	"encoding/json"
	"time"
)

// User represents a registered user.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	GamesPlayed int       `json:"games_played"`
	GamesWon    int       `json:"games_won"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Profile is what other players may see of a user.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	GamesPlayed int    `json:"games_played"`
	GamesWon    int    `json:"games_won"`
}

// Profile strips the sign-in identity from a user.
func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		GamesPlayed: u.GamesPlayed,
		GamesWon:    u.GamesWon,
	}
}

// Room statuses.
const (
	RoomLobby           = "lobby"
	RoomCharacterSelect = "character_select"
	RoomActive          = "active"
	RoomFinished        = "finished"
)

// Room is a persisted game room.
type Room struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	CreatorID      string       `json:"creator_id"`
	Status         string       `json:"status"`
	Result         string       `json:"result,omitempty"`
	ActionTimeout  string       `json:"action_timeout"`
	ResultsTimeout string       `json:"results_timeout"`
	CreatedAt      time.Time    `json:"created_at"`
	StartedAt      *time.Time   `json:"started_at,omitempty"`
	FinishedAt     *time.Time   `json:"finished_at,omitempty"`
	Players        []RoomPlayer `json:"players,omitempty"`
	SubmittedCount int          `json:"submitted_count,omitempty"`
	ReadyCount     int          `json:"ready_count,omitempty"`
}

// RoomPlayer is a user's seat in a room. Team stays empty in API
// responses until the room is finished.
type RoomPlayer struct {
	RoomID      string    `json:"room_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Race        string    `json:"race,omitempty"`
	Class       string    `json:"class,omitempty"`
	Team        string    `json:"team,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Round is one action/results cycle. States and the log carry hidden
// information and are never serialized to clients directly.
type Round struct {
	ID              string          `json:"id"`
	RoomID          string          `json:"room_id"`
	Number          int             `json:"number"`
	StateBefore     json.RawMessage `json:"-"`
	StateAfter      json.RawMessage `json:"-"`
	Log             json.RawMessage `json:"-"`
	Deadline        time.Time       `json:"deadline"`
	ResultsDeadline *time.Time      `json:"results_deadline,omitempty"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Message is a room chat message.
type Message struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"room_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id,omitempty"` // empty = everyone in the room
	Content     string    `json:"content"`
	Round       int       `json:"round"`
	CreatedAt   time.Time `json:"created_at"`
}
