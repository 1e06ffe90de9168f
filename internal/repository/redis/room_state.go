package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key patterns for live room data.
func stateKey(roomID string) string            { return "room:" + roomID + ":state" }
func actionKey(roomID, playerID string) string { return "room:" + roomID + ":actions:" + playerID }
func submittedKey(roomID string) string        { return "room:" + roomID + ":submitted" }
func readyKey(roomID string) string            { return "room:" + roomID + ":ready" }
func offlineKey(roomID string) string          { return "room:" + roomID + ":offline" }
func timerKey(roomID string) string            { return "room:" + roomID + ":timer" }

// TimerKeyPrefix and TimerKeySuffix bracket the room id in timer keys.
const (
	TimerKeyPrefix = "room:"
	TimerKeySuffix = ":timer"
)

// SetRoomState stores the room state snapshot.
func (c *Client) SetRoomState(ctx context.Context, roomID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, stateKey(roomID), []byte(state), 0).Err()
}

// GetRoomState returns the room state snapshot, or nil when none is cached.
func (c *Client) GetRoomState(ctx context.Context, roomID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(roomID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room state: %w", err)
	}
	return json.RawMessage(data), nil
}

// SetAction stores a player's pending action for the current round.
func (c *Client) SetAction(ctx context.Context, roomID, playerID string, action json.RawMessage) error {
	return c.rdb.Set(ctx, actionKey(roomID, playerID), []byte(action), 0).Err()
}

// GetActions returns the pending actions of the given players. Players
// without an action are absent from the map.
func (c *Client) GetActions(ctx context.Context, roomID string, playerIDs []string) (map[string]json.RawMessage, error) {
	result := make(map[string]json.RawMessage)
	if len(playerIDs) == 0 {
		return result, nil
	}
	keys := make([]string, len(playerIDs))
	for i, id := range playerIDs {
		keys[i] = actionKey(roomID, id)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get actions: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		result[playerIDs[i]] = json.RawMessage(s)
	}
	return result, nil
}

// MarkSubmitted adds a player to the round's submitted set.
func (c *Client) MarkSubmitted(ctx context.Context, roomID, playerID string) error {
	return c.rdb.SAdd(ctx, submittedKey(roomID), playerID).Err()
}

// SubmittedPlayers returns who has submitted this round.
func (c *Client) SubmittedPlayers(ctx context.Context, roomID string) ([]string, error) {
	return c.rdb.SMembers(ctx, submittedKey(roomID)).Result()
}

// MarkReady adds a player to the results-phase ready set.
func (c *Client) MarkReady(ctx context.Context, roomID, playerID string) error {
	return c.rdb.SAdd(ctx, readyKey(roomID), playerID).Err()
}

// ReadyPlayers returns who has acknowledged the current results.
func (c *Client) ReadyPlayers(ctx context.Context, roomID string) ([]string, error) {
	return c.rdb.SMembers(ctx, readyKey(roomID)).Result()
}

// SetOffline records or clears a player's disconnected flag.
func (c *Client) SetOffline(ctx context.Context, roomID, playerID string, offline bool) error {
	if offline {
		return c.rdb.SAdd(ctx, offlineKey(roomID), playerID).Err()
	}
	return c.rdb.SRem(ctx, offlineKey(roomID), playerID).Err()
}

// OfflinePlayers returns the players currently inside their reconnect window.
func (c *Client) OfflinePlayers(ctx context.Context, roomID string) ([]string, error) {
	return c.rdb.SMembers(ctx, offlineKey(roomID)).Result()
}

// deadlineGracePeriod is the extra time after the displayed deadline before
// the timer key expires, giving clients a moment of leeway.
const deadlineGracePeriod = 2 * time.Second

// SetTimer creates a timer key with a TTL. Its expiry is delivered through
// keyspace notifications and drives the phase change.
func (c *Client) SetTimer(ctx context.Context, roomID string, deadline time.Time) error {
	ttl := time.Until(deadline) + deadlineGracePeriod
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, timerKey(roomID), deadline.Unix(), ttl).Err()
}

// ClearTimer removes the room's timer.
func (c *Client) ClearTimer(ctx context.Context, roomID string) error {
	return c.rdb.Del(ctx, timerKey(roomID)).Err()
}

// ClearRoundData removes actions, submitted and ready sets, and the timer.
func (c *Client) ClearRoundData(ctx context.Context, roomID string, playerIDs []string) error {
	keys := []string{submittedKey(roomID), readyKey(roomID), timerKey(roomID)}
	for _, id := range playerIDs {
		keys = append(keys, actionKey(roomID, id))
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// DeleteRoomData removes every key belonging to the room.
func (c *Client) DeleteRoomData(ctx context.Context, roomID string, playerIDs []string) error {
	keys := []string{stateKey(roomID), submittedKey(roomID), readyKey(roomID), offlineKey(roomID), timerKey(roomID)}
	for _, id := range playerIDs {
		keys = append(keys, actionKey(roomID, id))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
