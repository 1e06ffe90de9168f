package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/warlock/api/internal/repository"
	redisrepo "github.com/freeeve/warlock/api/internal/repository/redis"
)

// TimerListener listens for Redis keyspace notifications on expired timer keys
// and moves the room along when its deadline passes. A Postgres poller
// catches expirations if keyspace notifications are unavailable.
type TimerListener struct {
	rdb       *redis.Client
	rounds    *RoundService
	roundRepo repository.RoundRepository
	interval  time.Duration
}

// NewTimerListener creates a TimerListener.
func NewTimerListener(rdb *redis.Client, rounds *RoundService, roundRepo repository.RoundRepository) *TimerListener {
	return &TimerListener{rdb: rdb, rounds: rounds, roundRepo: roundRepo, interval: 10 * time.Second}
}

// Listen subscribes to expired key events until ctx is done.
func (t *TimerListener) Listen(ctx context.Context) error {
	pubsub := t.rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	defer pubsub.Close()

	log.Info().Msg("Timer listener started, listening for expired keys")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			t.handleExpiry(ctx, msg.Payload)
		}
	}
}

// Poll periodically checks Postgres for rounds past their deadline.
func (t *TimerListener) Poll(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", t.interval).Msg("Round deadline poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Round deadline poller stopped")
			return nil
		case <-ticker.C:
			t.checkExpired(ctx)
		}
	}
}

// checkExpired finds rounds whose action or results deadline has passed.
func (t *TimerListener) checkExpired(ctx context.Context) {
	rounds, err := t.roundRepo.ListExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list expired rounds")
		return
	}
	if len(rounds) > 0 {
		log.Info().Int("count", len(rounds)).Msg("Poller found expired rounds")
	}
	for _, rd := range rounds {
		log.Info().Str("roomId", rd.RoomID).Int("round", rd.Number).
			Bool("resolved", rd.ResolvedAt != nil).Msg("Poller handling expired round")
		if err := t.rounds.HandleDeadline(ctx, rd.RoomID); err != nil {
			log.Error().Err(err).Str("roomId", rd.RoomID).Msg("Deadline handling failed from poller")
		}
	}
}

// handleExpiry processes an expired key. Only room timer keys are acted on.
func (t *TimerListener) handleExpiry(ctx context.Context, key string) {
	roomID, ok := timerRoomID(key)
	if !ok {
		return
	}
	log.Info().Str("roomId", roomID).Msg("Timer expired")
	if err := t.rounds.HandleDeadline(ctx, roomID); err != nil {
		log.Error().Err(err).Str("roomId", roomID).Msg("Deadline handling failed after timer expiry")
	}
}

func timerRoomID(key string) (string, bool) {
	if !strings.HasPrefix(key, redisrepo.TimerKeyPrefix) || !strings.HasSuffix(key, redisrepo.TimerKeySuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, redisrepo.TimerKeyPrefix), redisrepo.TimerKeySuffix)
	if id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}
