package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safwentrabelsi/voce/config"
	"github.com/safwentrabelsi/voce/gamification"
	"github.com/safwentrabelsi/voce/types"
)

// RedisLeaderboard keeps one sorted set per leaderboard key.
type RedisLeaderboard struct {
	rdb redis.Cmdable
}

func NewRedisLeaderboard(cfg *config.RedisConfig) (*RedisLeaderboard, error) {
	opts, err := redis.ParseURL(cfg.GetURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.GetPassword() != "" {
		opts.Password = cfg.GetPassword()
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisLeaderboard{rdb: rdb}, nil
}

// NewRedisLeaderboardWithClient wraps an existing client.
func NewRedisLeaderboardWithClient(rdb redis.Cmdable) *RedisLeaderboard {
	return &RedisLeaderboard{rdb: rdb}
}

func leaderboardKey(by gamification.SortKey) string {
	return fmt.Sprintf("voce:leaderboard:%s", by)
}

// UpdateScores writes the entry's score under every leaderboard key.
func (l *RedisLeaderboard) UpdateScores(ctx context.Context, entry types.LeaderboardEntry) error {
	_, err := l.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, by := range gamification.SortKeys {
			pipe.ZAdd(ctx, leaderboardKey(by), redis.Z{
				Score:  gamification.Score(entry, by),
				Member: entry.Address,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// Top returns the addresses holding the limit highest scores. Members tied
// with the last one are fetched in ascending address order, up to limit of
// them, so the result may exceed limit.
func (l *RedisLeaderboard) Top(ctx context.Context, by gamification.SortKey, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	key := leaderboardKey(by)
	top, err := l.rdb.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}
	if len(top) == 0 {
		return nil, nil
	}

	cutoff := top[len(top)-1].Score
	members := make([]string, 0, len(top))
	for _, z := range top {
		if z.Score > cutoff {
			members = append(members, z.Member.(string))
		}
	}

	bound := strconv.FormatFloat(cutoff, 'g', -1, 64)
	ties, err := l.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   bound,
		Max:   bound,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore failed: %w", err)
	}
	return append(members, ties...), nil
}

// Count returns the number of members ranked under by.
func (l *RedisLeaderboard) Count(ctx context.Context, by gamification.SortKey) (int64, error) {
	n, err := l.rdb.ZCard(ctx, leaderboardKey(by)).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return n, nil
}

func (l *RedisLeaderboard) Close() error {
	if c, ok := l.rdb.(*redis.Client); ok {
		return c.Close()
	}
	return nil
}
