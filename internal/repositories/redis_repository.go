package repositories

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"lumen-backend/internal/models"
)

const (
	unreadTTL      = 24 * time.Hour
	leaderboardKey = "gifts:leaderboard"
	// Present once the board holds the full history from Postgres.
	leaderboardSeededKey = "gifts:leaderboard:seeded"
)

// addGift only increments a seeded board so a flushed cache never turns into
// a partial one.
var addGift = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return redis.call("ZINCRBY", KEYS[1], ARGV[1], ARGV[2])
end
return false
`)

// RedisRepository keeps derived counters that can always be rebuilt from
// Postgres.
type RedisRepository struct {
	rdb *redis.Client
}

func NewRedisRepository(rdb *redis.Client) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

func unreadKey(userID uuid.UUID) string {
	return "notifications:unread:" + userID.String()
}

// UnreadCount returns the cached count; ok is false on a cache miss.
func (r *RedisRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, bool, error) {
	v, err := r.rdb.Get(ctx, unreadKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// SetUnreadCount overwrites the cached count with a committed value.
func (r *RedisRepository) SetUnreadCount(ctx context.Context, userID uuid.UUID, n int64) error {
	return r.rdb.Set(ctx, unreadKey(userID), n, unreadTTL).Err()
}

func (r *RedisRepository) DeleteUnreadCount(ctx context.Context, userID uuid.UUID) error {
	return r.rdb.Del(ctx, unreadKey(userID)).Err()
}

// AddGift credits a reader on the all-time board. It is a no-op until the
// board has been seeded.
func (r *RedisRepository) AddGift(ctx context.Context, readerID uuid.UUID, cents int64) error {
	err := addGift.Run(ctx, r.rdb, []string{leaderboardKey, leaderboardSeededKey}, cents, readerID.String()).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (r *RedisRepository) LeaderboardSeeded(ctx context.Context) (bool, error) {
	n, err := r.rdb.Exists(ctx, leaderboardSeededKey).Result()
	return n == 1, err
}

// Leaderboard returns the top readers by gift value. Entries carry no
// display name; callers resolve names.
func (r *RedisRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	zs, err := r.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		out = append(out, models.LeaderboardEntry{ReaderID: id, TotalCents: int64(z.Score)})
	}
	return out, nil
}

// SeedLeaderboard replaces the leaderboard with totals computed elsewhere and
// marks it seeded.
func (r *RedisRepository) SeedLeaderboard(ctx context.Context, entries []models.LeaderboardEntry) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, leaderboardKey)
		for _, e := range entries {
			p.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(e.TotalCents), Member: e.ReaderID.String()})
		}
		p.Set(ctx, leaderboardSeededKey, time.Now().UTC().Format(time.RFC3339), 0)
		return nil
	})
	return err
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
