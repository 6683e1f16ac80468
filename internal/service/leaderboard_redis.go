package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 20

type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// RedisLeaderboardService ranks players in a sorted set and keeps each
// player's best entry as JSON in a hash next to it.
type RedisLeaderboardService struct {
	rdb        *redis.Client
	rankKey    string
	entriesKey string
}

func NewRedisLeaderboardService(rdb *redis.Client, key string) *RedisLeaderboardService {
	if key == "" {
		key = "triviabot:leaderboard"
	}
	return &RedisLeaderboardService{
		rdb:        rdb,
		rankKey:    key,
		entriesKey: key + ":entries",
	}
}

// rank folds percentage and score into one sorted-set score. It is negated so
// that ascending ZRANGE order puts the best first and equal ranks fall back to
// player ID order, the same as sortEntries.
func rank(e LeaderboardEntry) float64 {
	return -(float64(e.Percentage)*1e6 + float64(e.Score))
}

func (rs *RedisLeaderboardService) entry(ctx context.Context, c hashGetter, playerID string) (*LeaderboardEntry, error) {
	raw, err := c.HGet(ctx, rs.entriesKey, playerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var e LeaderboardEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", playerID, err)
	}
	return &e, nil
}

// AddEntry compares and stores under WATCH on the entries hash, so a
// concurrent write of the same player's entry aborts and retries this one.
func (rs *RedisLeaderboardService) AddEntry(ctx context.Context, entry LeaderboardEntry) (bool, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}

	for i := 0; i < maxTxRetries; i++ {
		var stored bool
		err := rs.rdb.Watch(ctx, func(tx *redis.Tx) error {
			existing, err := rs.entry(ctx, tx, entry.PlayerID)
			if err != nil {
				return err
			}
			if existing != nil && !entry.beats(*existing) {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, rs.entriesKey, entry.PlayerID, data)
				pipe.ZAdd(ctx, rs.rankKey, redis.Z{Score: rank(entry), Member: entry.PlayerID})
				return nil
			})
			if err == nil {
				stored = true
			}
			return err
		}, rs.entriesKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("store entry: %w", err)
		}
		return stored, nil
	}
	return false, fmt.Errorf("store entry %s: too much contention", entry.PlayerID)
}

func (rs *RedisLeaderboardService) GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = -1
	}

	ids, err := rs.rdb.ZRange(ctx, rs.rankKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []LeaderboardEntry{}, nil
	}

	raws, err := rs.rdb.HMGet(ctx, rs.entriesKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(raws))
	for i, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var e LeaderboardEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", ids[i], err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (rs *RedisLeaderboardService) GetPlayerPosition(ctx context.Context, playerID string) (int, *LeaderboardEntry, error) {
	pos, err := rs.rdb.ZRank(ctx, rs.rankKey, playerID).Result()
	if errors.Is(err, redis.Nil) {
		return -1, nil, nil
	}
	if err != nil {
		return -1, nil, err
	}

	e, err := rs.entry(ctx, rs.rdb, playerID)
	if err != nil {
		return -1, nil, err
	}
	return int(pos) + 1, e, nil
}
