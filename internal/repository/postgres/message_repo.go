package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/warlock/api/internal/model"
)

// MessageRepo handles room chat storage.
type MessageRepo struct {
	db *sql.DB
}

// NewMessageRepo creates a MessageRepo.
func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create inserts a message. RecipientID may be empty for room-wide chat.
func (r *MessageRepo) Create(ctx context.Context, roomID, senderID, recipientID, content string, round int) (*model.Message, error) {
	var m model.Message
	var recip sql.NullString
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO messages (room_id, sender_id, recipient_id, content, round)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, room_id, sender_id, recipient_id, content, round, created_at`,
		roomID, senderID, nullStr(recipientID), content, round,
	).Scan(&m.ID, &m.RoomID, &m.SenderID, &recip, &m.Content, &m.Round, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	m.RecipientID = recip.String
	return &m, nil
}

// ListByRoom returns the messages a user may read: room-wide ones and
// private ones sent to or by them.
func (r *MessageRepo) ListByRoom(ctx context.Context, roomID, userID string) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, room_id, sender_id, COALESCE(recipient_id::text, ''), content, round, created_at
		 FROM messages
		 WHERE room_id = $1 AND (recipient_id IS NULL OR sender_id = $2 OR recipient_id = $2)
		 ORDER BY created_at`, roomID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.RecipientID, &m.Content, &m.Round, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
