package services

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lumen-backend/internal/models"
	"lumen-backend/internal/repositories"
)

func newNotificationService(t *testing.T) (*NotificationService, *MockNotificationStore, *repositories.RedisRepository, *recordingPusher) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := new(MockNotificationStore)
	cache := repositories.NewRedisRepository(rdb)
	pusher := &recordingPusher{}
	return NewNotificationService(store, cache, pusher, zap.NewNop()), store, cache, pusher
}

func enabled(userID uuid.UUID) models.NotificationPreferences {
	return models.NotificationPreferences{UserID: userID, InAppEnabled: true, EmailEnabled: true}
}

func TestNotify_StoresCountAndPushes(t *testing.T) {
	svc, store, cache, pusher := newNotificationService(t)
	ctx := context.Background()
	user := uuid.New()

	store.On("Preferences", mock.Anything, user).Return(enabled(user), nil)
	store.On("Create", mock.Anything, mock.AnythingOfType("*models.Notification")).Return(int64(3), nil)

	n, err := svc.Create(ctx, user, models.NotifyGift, "Gift", "You got a gift", nil)
	require.NoError(t, err)
	require.NotNil(t, n)

	cached, ok, err := cache.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), cached)
	assert.Equal(t, 1, pusher.sent(user.String(), FrameNotification))
}

func TestNotify_RespectsMutedTypes(t *testing.T) {
	svc, store, _, pusher := newNotificationService(t)
	user := uuid.New()
	prefs := enabled(user)
	prefs.MutedTypes = []string{models.NotifyGift}
	store.On("Preferences", mock.Anything, user).Return(prefs, nil)

	n, err := svc.Create(context.Background(), user, models.NotifyGift, "Gift", "", nil)
	require.NoError(t, err)
	assert.Nil(t, n)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Equal(t, 0, pusher.sent(user.String(), FrameNotification))
}

func TestMarkRead_OverwritesCacheWithCommittedCount(t *testing.T) {
	svc, store, cache, pusher := newNotificationService(t)
	ctx := context.Background()
	user, id := uuid.New(), uuid.New()

	require.NoError(t, cache.SetUnreadCount(ctx, user, 10))
	store.On("MarkRead", mock.Anything, user, id).Return(int64(4), nil)

	unread, err := svc.MarkRead(ctx, user, id)
	require.NoError(t, err)
	assert.Equal(t, int64(4), unread)

	cached, _, err := cache.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cached)
	assert.Equal(t, 1, pusher.sent(user.String(), FrameUnreadCount))
}

func TestMarkRead_NotFoundLeavesCache(t *testing.T) {
	svc, store, cache, _ := newNotificationService(t)
	ctx := context.Background()
	user, id := uuid.New(), uuid.New()

	require.NoError(t, cache.SetUnreadCount(ctx, user, 2))
	store.On("MarkRead", mock.Anything, user, id).Return(int64(0), repositories.ErrNotFound)

	_, err := svc.MarkRead(ctx, user, id)
	assert.ErrorIs(t, err, ErrNotFound)

	cached, _, _ := cache.UnreadCount(ctx, user)
	assert.Equal(t, int64(2), cached)
}

func TestMarkAllRead(t *testing.T) {
	svc, store, cache, _ := newNotificationService(t)
	ctx := context.Background()
	user := uuid.New()
	store.On("MarkAllRead", mock.Anything, user).Return(int64(5), int64(0), nil)

	updated, unread, err := svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated)
	assert.Zero(t, unread)

	cached, ok, _ := cache.UnreadCount(ctx, user)
	assert.True(t, ok)
	assert.Zero(t, cached)
}

func TestUnreadCount_FallsBackToDatabase(t *testing.T) {
	svc, store, cache, _ := newNotificationService(t)
	ctx := context.Background()
	user := uuid.New()
	store.On("UnreadCount", mock.Anything, user).Return(int64(6), nil).Once()

	n, err := svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	// Served from the refilled cache the second time.
	n, err = svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	store.AssertNumberOfCalls(t, "UnreadCount", 1)

	cached, _, _ := cache.UnreadCount(ctx, user)
	assert.Equal(t, int64(6), cached)
}

func TestWantsEmail(t *testing.T) {
	svc, store, _, _ := newNotificationService(t)
	user := uuid.New()
	prefs := enabled(user)
	prefs.MutedTypes = []string{models.NotifyOrder}
	store.On("Preferences", mock.Anything, user).Return(prefs, nil)

	ok, err := svc.WantsEmail(context.Background(), user, models.NotifySessionBooked)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.WantsEmail(context.Background(), user, models.NotifyOrder)
	require.NoError(t, err)
	assert.False(t, ok)
}
