package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lumen-backend/internal/events"
	"lumen-backend/internal/models"
	"lumen-backend/internal/repositories"
)

type giftFixture struct {
	svc       *GiftService
	gifts     *MockGiftStore
	readers   *MockReaderStore
	counters  *repositories.RedisRepository
	notifier  *recordingNotifier
	publisher *recordingPublisher
	reader    *models.ReaderProfile
	gift      *models.Gift
}

func newGiftFixture(t *testing.T) *giftFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &giftFixture{
		gifts:     new(MockGiftStore),
		readers:   new(MockReaderStore),
		counters:  repositories.NewRedisRepository(rdb),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		reader:    &models.ReaderProfile{UserID: uuid.New(), Status: models.ReaderApproved},
		gift:      &models.Gift{ID: uuid.New(), Name: "Candle", PriceCents: 1000, Active: true},
	}
	f.svc = NewGiftService(f.gifts, f.readers, f.counters, f.notifier, f.publisher, marketCfg, zap.NewNop())
	f.svc.now = func() time.Time { return bookingNow }
	f.gifts.On("FindByID", mock.Anything, f.gift.ID).Return(f.gift, nil)
	f.readers.On("FindByID", mock.Anything, f.reader.UserID).Return(f.reader, nil)
	return f
}

func TestSendGift(t *testing.T) {
	f := newGiftFixture(t)
	ctx := context.Background()
	sender := &models.User{ID: uuid.New(), DisplayName: "Ana", Role: models.RoleClient}

	var entries []models.LedgerEntry
	f.gifts.On("Send", mock.Anything, mock.AnythingOfType("*models.GiftTransaction"), mock.Anything).
		Run(func(args mock.Arguments) { entries = args.Get(2).([]models.LedgerEntry) }).
		Return(nil)

	// The cold board is seeded from history, which already holds this gift.
	f.gifts.On("Leaderboard", mock.Anything, time.Time{}, leaderboardSeedLimit).
		Return([]models.LeaderboardEntry{{ReaderID: f.reader.UserID, TotalCents: 1000}}, nil).Once()

	gt, err := f.svc.Send(ctx, sender, SendGiftRequest{GiftID: f.gift.ID, ReaderID: f.reader.UserID, Message: "thanks"})
	require.NoError(t, err)
	assert.Equal(t, int64(200), gt.FeeCents)
	assert.Equal(t, int64(800), gt.EarningCents)

	require.Len(t, entries, 2)
	assert.Equal(t, int64(-1000), entries[0].AmountCents)
	assert.Equal(t, models.TxGiftPurchase, entries[0].Type)
	assert.Equal(t, int64(800), entries[1].AmountCents)
	assert.Equal(t, f.reader.UserID, entries[1].UserID)

	board, err := f.counters.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, int64(1000), board[0].TotalCents)

	assert.Equal(t, []string{models.NotifyGift}, f.notifier.to(f.reader.UserID))
	assert.Equal(t, []string{events.GiftSent}, f.publisher.events)
}

func TestSendGift_Rejections(t *testing.T) {
	f := newGiftFixture(t)
	ctx := context.Background()
	sender := &models.User{ID: uuid.New(), Role: models.RoleClient}

	_, err := f.svc.Send(ctx, &models.User{ID: f.reader.UserID}, SendGiftRequest{GiftID: f.gift.ID, ReaderID: f.reader.UserID})
	assert.ErrorIs(t, err, ErrValidation)

	retired := &models.Gift{ID: uuid.New(), Name: "Old", PriceCents: 100}
	f.gifts.On("FindByID", mock.Anything, retired.ID).Return(retired, nil)
	_, err = f.svc.Send(ctx, sender, SendGiftRequest{GiftID: retired.ID, ReaderID: f.reader.UserID})
	assert.ErrorIs(t, err, ErrValidation)

	f.gifts.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(repositories.ErrInsufficientFunds)
	_, err = f.svc.Send(ctx, sender, SendGiftRequest{GiftID: f.gift.ID, ReaderID: f.reader.UserID})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	board, _ := f.counters.Leaderboard(ctx, 10)
	assert.Empty(t, board)
	assert.Empty(t, f.publisher.events)
}

func TestLeaderboard_SeedsCacheFromDatabase(t *testing.T) {
	f := newGiftFixture(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	rows := []models.LeaderboardEntry{
		{ReaderID: a, DisplayName: "Luna", TotalCents: 5000},
		{ReaderID: b, DisplayName: "Sol", TotalCents: 3000},
	}
	f.gifts.On("Leaderboard", mock.Anything, time.Time{}, leaderboardSeedLimit).Return(rows, nil).Once()
	f.gifts.On("ReaderNames", mock.Anything, []uuid.UUID{a, b}).Return(map[uuid.UUID]string{a: "Luna", b: "Sol"}, nil)

	first, err := f.svc.Leaderboard(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, rows, first)

	second, err := f.svc.Leaderboard(ctx, "all", 10)
	require.NoError(t, err)
	assert.Equal(t, rows, second)
	f.gifts.AssertNumberOfCalls(t, "Leaderboard", 1)
}

func TestSendGift_ColdBoardKeepsHistory(t *testing.T) {
	f := newGiftFixture(t)
	ctx := context.Background()
	sender := &models.User{ID: uuid.New(), Role: models.RoleClient}
	leader := uuid.New()
	other := &models.ReaderProfile{UserID: uuid.New(), Status: models.ReaderApproved}
	f.readers.On("FindByID", mock.Anything, other.UserID).Return(other, nil)
	f.gifts.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gifts.On("ReaderNames", mock.Anything, mock.Anything).Return(map[uuid.UUID]string{}, nil)

	// History already includes the first gift below once it commits.
	f.gifts.On("Leaderboard", mock.Anything, time.Time{}, leaderboardSeedLimit).Return([]models.LeaderboardEntry{
		{ReaderID: leader, TotalCents: 50000},
		{ReaderID: f.reader.UserID, TotalCents: 4000},
	}, nil).Once()

	_, err := f.svc.Send(ctx, sender, SendGiftRequest{GiftID: f.gift.ID, ReaderID: f.reader.UserID})
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, sender, SendGiftRequest{GiftID: f.gift.ID, ReaderID: other.UserID})
	require.NoError(t, err)

	board, err := f.svc.Leaderboard(ctx, "all", 10)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, leader, board[0].ReaderID)
	assert.Equal(t, int64(50000), board[0].TotalCents)
	assert.Equal(t, f.reader.UserID, board[1].ReaderID)
	assert.Equal(t, int64(4000), board[1].TotalCents)
	assert.Equal(t, other.UserID, board[2].ReaderID)
	assert.Equal(t, int64(1000), board[2].TotalCents)
	f.gifts.AssertNumberOfCalls(t, "Leaderboard", 1)
}

func TestLeaderboard_Periods(t *testing.T) {
	f := newGiftFixture(t)
	f.gifts.On("Leaderboard", mock.Anything, bookingNow.AddDate(0, 0, -7), 5).
		Return([]models.LeaderboardEntry(nil), nil)

	out, err := f.svc.Leaderboard(context.Background(), "week", 5)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NotNil(t, out)

	_, err = f.svc.Leaderboard(context.Background(), "decade", 5)
	assert.ErrorIs(t, err, ErrValidation)
}
