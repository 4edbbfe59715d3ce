//go:build integration

package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"lumen-backend/internal/database"
	"lumen-backend/internal/models"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("lumen"),
		postgres.WithUsername("lumen"),
		postgres.WithPassword("lumen"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(ctx, pool, zap.NewNop()))
	return pool
}

func seedUser(t *testing.T, users *UserRepository, uid string) *models.User {
	t.Helper()
	u := &models.User{FirebaseUID: uid, Email: uid + "@example.com", DisplayName: uid}
	_, err := users.Upsert(context.Background(), u, models.RoleAdmin)
	require.NoError(t, err)
	return u
}

func TestIntegration_FirstUserIsAdmin(t *testing.T) {
	pool := startPostgres(t)
	users := NewUserRepository(pool)

	first := seedUser(t, users, "first")
	second := seedUser(t, users, "second")
	assert.Equal(t, models.RoleAdmin, first.Role)
	assert.Equal(t, models.RoleClient, second.Role)

	again := &models.User{FirebaseUID: "first", Email: "first@example.com"}
	created, err := users.Upsert(context.Background(), again, models.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
}

func TestIntegration_BookingIsSerializedAndCharged(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	readers := NewReaderRepository(pool)
	wallet := NewWalletRepository(pool)
	sessions := NewSessionRepository(pool)

	seedUser(t, users, "admin")
	reader := seedUser(t, users, "reader")
	client := seedUser(t, users, "client")
	require.NoError(t, readers.Create(ctx, &models.ReaderProfile{UserID: reader.ID, DisplayName: "Reader", ChatRate: 100}))
	_, err := readers.SetStatus(ctx, reader.ID, models.ReaderApproved)
	require.NoError(t, err)

	_, err = wallet.Apply(ctx, models.LedgerEntry{UserID: client.ID, Type: models.TxDeposit, AmountCents: 10000})
	require.NoError(t, err)

	start := time.Date(2026, 11, 2, 15, 0, 0, 0, time.UTC)
	book := func() error {
		return sessions.Create(ctx, &models.Session{
			ClientID: client.ID, ReaderID: reader.ID, Type: models.SessionChat,
			StartsAt: start, DurationMinutes: 30, RatePerMinute: 100, PriceCents: 3000,
		})
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = book()
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotTaken)
	}
	assert.Equal(t, 1, ok)

	balance, err := wallet.Balance(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), balance)
}

func TestIntegration_InsufficientFundsRollsBack(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	wallet := NewWalletRepository(pool)

	u := seedUser(t, users, "poor")
	_, err := wallet.Apply(ctx, models.LedgerEntry{UserID: u.ID, Type: models.TxAdjustment, AmountCents: -1})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	txs, total, err := wallet.List(ctx, models.TransactionFilter{UserID: &u.ID})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, txs)

	_, err = wallet.Apply(ctx, models.LedgerEntry{UserID: uuid.New(), Type: models.TxDeposit, AmountCents: 5})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIntegration_NotificationUnreadCount(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	notifications := NewNotificationRepository(pool)

	u := seedUser(t, users, "reader")
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		n := &models.Notification{UserID: u.ID, Type: models.NotifyMessage, Title: "hi"}
		unread, err := notifications.Create(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), unread)
		ids = append(ids, n.ID)
	}

	unread, err := notifications.MarkRead(ctx, u.ID, ids[0])
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	// Marking the same one twice does not change the count.
	unread, err = notifications.MarkRead(ctx, u.ID, ids[0])
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	_, err = notifications.MarkRead(ctx, uuid.New(), ids[1])
	assert.ErrorIs(t, err, ErrNotFound)

	updated, unread, err := notifications.MarkAllRead(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)
	assert.Zero(t, unread)
}

func TestIntegration_ReaderFiltersCompose(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	readers := NewReaderRepository(pool)

	seedUser(t, users, "admin")
	mk := func(uid string, chat, video int64, specialty string) uuid.UUID {
		u := seedUser(t, users, uid)
		require.NoError(t, readers.Create(ctx, &models.ReaderProfile{
			UserID: u.ID, DisplayName: uid, ChatRate: chat, VideoRate: video, Specialties: []string{specialty},
		}))
		_, err := readers.SetStatus(ctx, u.ID, models.ReaderApproved)
		require.NoError(t, err)
		return u.ID
	}
	cheapTarot := mk("cheap-tarot", 100, 0, "tarot")
	mk("pricey-tarot", 500, 0, "tarot")
	mk("cheap-astro", 100, 0, "astrology")
	mk("video-tarot", 0, 200, "tarot")

	maxPrice := int64(150)
	list, total, err := readers.List(ctx, models.ReaderFilter{
		Specialty:   "tarot",
		MaxPrice:    &maxPrice,
		SessionType: models.SessionChat,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, cheapTarot, list[0].UserID)
}
