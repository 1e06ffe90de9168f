package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freeeve/warlock/api/internal/model"
)

// RoundRepo handles round history operations.
type RoundRepo struct {
	db *sql.DB
}

// NewRoundRepo creates a RoundRepo.
func NewRoundRepo(db *sql.DB) *RoundRepo {
	return &RoundRepo{db: db}
}

const roundColumns = `id, room_id, number, state_before, state_after, log, deadline, results_deadline, resolved_at, created_at`

func scanRound(row rowScanner) (*model.Round, error) {
	var rd model.Round
	var stateAfter, roundLog sql.NullString
	if err := row.Scan(&rd.ID, &rd.RoomID, &rd.Number, &rd.StateBefore, &stateAfter, &roundLog,
		&rd.Deadline, &rd.ResultsDeadline, &rd.ResolvedAt, &rd.CreatedAt); err != nil {
		return nil, err
	}
	if stateAfter.Valid {
		rd.StateAfter = json.RawMessage(stateAfter.String)
	}
	if roundLog.Valid {
		rd.Log = json.RawMessage(roundLog.String)
	}
	return &rd, nil
}

// CreateRound inserts the next round of a room.
func (r *RoundRepo) CreateRound(ctx context.Context, roomID string, number int, stateBefore json.RawMessage, deadline time.Time) (*model.Round, error) {
	var rd model.Round
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO rounds (room_id, number, state_before, deadline)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, room_id, number, state_before, deadline, created_at`,
		roomID, number, stateBefore, deadline,
	).Scan(&rd.ID, &rd.RoomID, &rd.Number, &rd.StateBefore, &rd.Deadline, &rd.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create round: %w", err)
	}
	return &rd, nil
}

// CurrentRound returns the latest round of a room, resolved or not.
func (r *RoundRepo) CurrentRound(ctx context.Context, roomID string) (*model.Round, error) {
	rd, err := scanRound(r.db.QueryRowContext(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE room_id = $1
		 ORDER BY number DESC LIMIT 1`, roomID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current round: %w", err)
	}
	return rd, nil
}

// FindRound returns one round by number.
func (r *RoundRepo) FindRound(ctx context.Context, roomID string, number int) (*model.Round, error) {
	rd, err := scanRound(r.db.QueryRowContext(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE room_id = $1 AND number = $2`, roomID, number))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find round: %w", err)
	}
	return rd, nil
}

// ListRounds returns every round of a room in order.
func (r *RoundRepo) ListRounds(ctx context.Context, roomID string) ([]model.Round, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE room_id = $1 ORDER BY number`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []model.Round
	for rows.Next() {
		rd, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, *rd)
	}
	return rounds, rows.Err()
}

// ResolveRound stores the resolved state and log. resultsDeadline is nil
// when the round ended the game.
func (r *RoundRepo) ResolveRound(ctx context.Context, roundID string, stateAfter, log json.RawMessage, resultsDeadline *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rounds SET state_after = $1, log = $2, results_deadline = $3, resolved_at = now() WHERE id = $4`,
		stateAfter, log, resultsDeadline, roundID,
	)
	if err != nil {
		return fmt.Errorf("resolve round: %w", err)
	}
	return nil
}

// ListExpired returns the latest round of each active room whose current
// deadline has passed: the action deadline while unresolved, the results
// deadline afterwards. DISTINCT ON keeps stale earlier rounds out.
func (r *RoundRepo) ListExpired(ctx context.Context) ([]model.Round, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roundColumns+` FROM (
		   SELECT DISTINCT ON (rd.room_id) rd.*
		   FROM rounds rd
		   JOIN rooms g ON g.id = rd.room_id
		   WHERE g.status = 'active'
		   ORDER BY rd.room_id, rd.number DESC
		 ) latest
		 WHERE (resolved_at IS NULL AND deadline < now())
		    OR (resolved_at IS NOT NULL AND results_deadline < now())`)
	if err != nil {
		return nil, fmt.Errorf("list expired rounds: %w", err)
	}
	defer rows.Close()

	var rounds []model.Round
	for rows.Next() {
		rd, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired round: %w", err)
		}
		rounds = append(rounds, *rd)
	}
	return rounds, rows.Err()
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
