package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/warlock/api/internal/model"
)

// RoomRepo handles room and room_player database operations.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo creates a RoomRepo.
func NewRoomRepo(db *sql.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

const roomColumns = `id, name, creator_id, status, result, action_timeout, results_timeout, created_at, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*model.Room, error) {
	var g model.Room
	var result sql.NullString
	if err := row.Scan(&g.ID, &g.Name, &g.CreatorID, &g.Status, &result, &g.ActionTimeout, &g.ResultsTimeout,
		&g.CreatedAt, &g.StartedAt, &g.FinishedAt); err != nil {
		return nil, err
	}
	g.Result = result.String
	return &g, nil
}

// Create inserts a new room in the lobby.
func (r *RoomRepo) Create(ctx context.Context, name, creatorID, actionTimeout, resultsTimeout string) (*model.Room, error) {
	g, err := scanRoom(r.db.QueryRowContext(ctx,
		`INSERT INTO rooms (name, creator_id, action_timeout, results_timeout)
		 VALUES ($1, $2, $3::interval, $4::interval)
		 RETURNING `+roomColumns,
		name, creatorID, actionTimeout, resultsTimeout,
	))
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return g, nil
}

// FindByID returns a room with its players, or nil when it does not exist.
func (r *RoomRepo) FindByID(ctx context.Context, id string) (*model.Room, error) {
	g, err := scanRoom(r.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find room: %w", err)
	}

	players, err := r.ListPlayers(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Players = players
	return g, nil
}

func (r *RoomRepo) listRooms(ctx context.Context, op, query string, args ...any) ([]model.Room, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		g, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, *g)
	}
	return rooms, rows.Err()
}

// ListOpen returns rooms that can still be joined.
func (r *RoomRepo) ListOpen(ctx context.Context) ([]model.Room, error) {
	return r.listRooms(ctx, "list open rooms",
		`SELECT `+roomColumns+` FROM rooms
		 WHERE status IN ('lobby', 'character_select') ORDER BY created_at DESC LIMIT 50`)
}

// ListByUser returns rooms the user sits in or created.
func (r *RoomRepo) ListByUser(ctx context.Context, userID string) ([]model.Room, error) {
	return r.listRooms(ctx, "list user rooms",
		`SELECT DISTINCT g.id, g.name, g.creator_id, g.status, g.result, g.action_timeout, g.results_timeout,
		        g.created_at, g.started_at, g.finished_at
		 FROM rooms g LEFT JOIN room_players rp ON g.id = rp.room_id AND rp.user_id = $1
		 WHERE rp.user_id = $1 OR g.creator_id = $1
		 ORDER BY g.created_at DESC LIMIT 50`, userID)
}

// ListFinished returns finished rooms, most recent first.
func (r *RoomRepo) ListFinished(ctx context.Context) ([]model.Room, error) {
	return r.listRooms(ctx, "list finished rooms",
		`SELECT `+roomColumns+` FROM rooms
		 WHERE status = 'finished' ORDER BY finished_at DESC LIMIT 100`)
}

// ListActive returns all in-game rooms with their players.
func (r *RoomRepo) ListActive(ctx context.Context) ([]model.Room, error) {
	rooms, err := r.listRooms(ctx, "list active rooms",
		`SELECT `+roomColumns+` FROM rooms WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		players, err := r.ListPlayers(ctx, rooms[i].ID)
		if err != nil {
			return nil, err
		}
		rooms[i].Players = players
	}
	return rooms, nil
}

// ListPlayers returns the seats of a room in join order.
func (r *RoomRepo) ListPlayers(ctx context.Context, roomID string) ([]model.RoomPlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rp.room_id, rp.user_id, u.display_name, rp.race, rp.class, rp.team, rp.joined_at
		 FROM room_players rp JOIN users u ON u.id = rp.user_id
		 WHERE rp.room_id = $1 ORDER BY rp.joined_at`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []model.RoomPlayer
	for rows.Next() {
		var p model.RoomPlayer
		var race, class, team sql.NullString
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.DisplayName, &race, &class, &team, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.Race, p.Class, p.Team = race.String, class.String, team.String
		players = append(players, p)
	}
	return players, rows.Err()
}

// AddPlayer seats a user in a room.
func (r *RoomRepo) AddPlayer(ctx context.Context, roomID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO room_players (room_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("add player: %w", err)
	}
	return nil
}

// RemovePlayer frees a user's seat.
func (r *RoomRepo) RemovePlayer(ctx context.Context, roomID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM room_players WHERE room_id = $1 AND user_id = $2`,
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove player: %w", err)
	}
	return nil
}

// SetCharacter records a player's race and class.
func (r *RoomRepo) SetCharacter(ctx context.Context, roomID, userID, race, class string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE room_players SET race = $1, class = $2 WHERE room_id = $3 AND user_id = $4`,
		race, class, roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("set character: %w", err)
	}
	return nil
}

// SetStatus moves a room between lobby statuses.
func (r *RoomRepo) SetStatus(ctx context.Context, roomID, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET status = $1 WHERE id = $2`, status, roomID)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// SetActive stores team assignments and marks the room active.
func (r *RoomRepo) SetActive(ctx context.Context, roomID string, teams map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for userID, team := range teams {
		_, err := tx.ExecContext(ctx,
			`UPDATE room_players SET team = $1 WHERE room_id = $2 AND user_id = $3`,
			team, roomID, userID,
		)
		if err != nil {
			return fmt.Errorf("assign team: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE rooms SET status = 'active', started_at = now() WHERE id = $1`, roomID,
	)
	if err != nil {
		return fmt.Errorf("update room status: %w", err)
	}

	return tx.Commit()
}

// SetFinished marks a room finished with its result.
func (r *RoomRepo) SetFinished(ctx context.Context, roomID, result string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET status = 'finished', result = $1, finished_at = now() WHERE id = $2`,
		nullStr(result), roomID,
	)
	if err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	return nil
}

// Delete removes a room and everything that cascades from it.
func (r *RoomRepo) Delete(ctx context.Context, roomID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}
