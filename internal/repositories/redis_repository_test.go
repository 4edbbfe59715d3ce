package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen-backend/internal/models"
)

func newTestRedis(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRepository(rdb), mr
}

func TestRedisRepository_UnreadCount(t *testing.T) {
	repo, mr := newTestRedis(t)
	ctx := context.Background()
	user := uuid.New()

	_, ok, err := repo.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetUnreadCount(ctx, user, 7))
	n, ok, err := repo.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	mr.FastForward(unreadTTL + time.Second)
	_, ok, err = repo.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRepository_DeleteUnreadCount(t *testing.T) {
	repo, _ := newTestRedis(t)
	ctx := context.Background()
	user := uuid.New()

	require.NoError(t, repo.SetUnreadCount(ctx, user, 2))
	require.NoError(t, repo.DeleteUnreadCount(ctx, user))
	_, ok, err := repo.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRepository_Leaderboard(t *testing.T) {
	repo, _ := newTestRedis(t)
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, repo.SeedLeaderboard(ctx, nil))
	require.NoError(t, repo.AddGift(ctx, a, 500))
	require.NoError(t, repo.AddGift(ctx, b, 900))
	require.NoError(t, repo.AddGift(ctx, a, 600))
	require.NoError(t, repo.AddGift(ctx, c, 100))

	top, err := repo.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, a, top[0].ReaderID)
	assert.Equal(t, int64(1100), top[0].TotalCents)
	assert.Equal(t, b, top[1].ReaderID)
}

func TestRedisRepository_SeedLeaderboardReplaces(t *testing.T) {
	repo, _ := newTestRedis(t)
	ctx := context.Background()
	stale, fresh := uuid.New(), uuid.New()

	require.NoError(t, repo.SeedLeaderboard(ctx, nil))
	require.NoError(t, repo.AddGift(ctx, stale, 100))
	require.NoError(t, repo.SeedLeaderboard(ctx, []models.LeaderboardEntry{{ReaderID: fresh, TotalCents: 250}}))

	top, err := repo.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, fresh, top[0].ReaderID)
	assert.Equal(t, int64(250), top[0].TotalCents)
}

func TestRedisRepository_AddGiftIgnoresUnseededBoard(t *testing.T) {
	repo, _ := newTestRedis(t)
	ctx := context.Background()
	reader := uuid.New()

	seeded, err := repo.LeaderboardSeeded(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	require.NoError(t, repo.AddGift(ctx, reader, 100))
	top, err := repo.Leaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	require.NoError(t, repo.SeedLeaderboard(ctx, []models.LeaderboardEntry{{ReaderID: reader, TotalCents: 400}}))
	seeded, err = repo.LeaderboardSeeded(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	require.NoError(t, repo.AddGift(ctx, reader, 100))
	top, err = repo.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(500), top[0].TotalCents)
}
