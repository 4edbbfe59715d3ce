package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lumen-backend/internal/config"
	"lumen-backend/internal/events"
	"lumen-backend/internal/models"
	"lumen-backend/internal/repositories"
)

// Sunday 18 October 2026, noon UTC.
var bookingNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

var marketCfg = config.MarketplaceConfig{
	PlatformFeeBps:     2000,
	TaxRateBps:         1000,
	SlotMinutes:        15,
	CancellationCutoff: 24 * time.Hour,
	MaxBookingDays:     30,
}

type bookingFixture struct {
	svc       *BookingService
	avail     *AvailabilityService
	sessions  *MockSessionStore
	readers   *MockReaderStore
	store     *MockAvailabilityStore
	notifier  *recordingNotifier
	publisher *recordingPublisher
	reader    *models.ReaderProfile
	client    *models.User
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		sessions:  new(MockSessionStore),
		readers:   new(MockReaderStore),
		store:     new(MockAvailabilityStore),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		reader: &models.ReaderProfile{
			UserID:      uuid.New(),
			DisplayName: "Madame Luna",
			ChatRate:    200,
			Timezone:    "UTC",
			Status:      models.ReaderApproved,
		},
		client: &models.User{ID: uuid.New(), DisplayName: "Sam", Role: models.RoleClient},
	}
	f.avail = NewAvailabilityService(f.store, f.readers, f.sessions, marketCfg)
	f.avail.now = func() time.Time { return bookingNow }
	f.svc = NewBookingService(f.sessions, f.readers, f.avail, f.notifier, f.publisher, marketCfg, zap.NewNop())
	f.svc.now = func() time.Time { return bookingNow }

	f.readers.On("FindByID", mock.Anything, f.reader.UserID).Return(f.reader, nil).Maybe()
	// Mondays 09:00 to 17:00.
	f.store.On("Rules", mock.Anything, f.reader.UserID).Return([]models.AvailabilityRule{
		{ReaderID: f.reader.UserID, Weekday: 1, StartTime: "09:00", EndTime: "17:00"},
	}, nil).Maybe()
	f.store.On("Exceptions", mock.Anything, f.reader.UserID, mock.Anything, mock.Anything).
		Return([]models.AvailabilityException{}, nil).Maybe()
	return f
}

func (f *bookingFixture) noBookings() {
	f.sessions.On("ActiveBetween", mock.Anything, f.reader.UserID, mock.Anything, mock.Anything).
		Return([]models.Session{}, nil).Maybe()
}

func (f *bookingFixture) request(start time.Time, minutes int) BookRequest {
	return BookRequest{ReaderID: f.reader.UserID, Type: models.SessionChat, StartsAt: start, DurationMinutes: minutes}
}

func (f *bookingFixture) session(status models.SessionStatus, start time.Time) *models.Session {
	return &models.Session{
		ID:              uuid.New(),
		ClientID:        f.client.ID,
		ReaderID:        f.reader.UserID,
		Type:            models.SessionChat,
		StartsAt:        start,
		DurationMinutes: 60,
		RatePerMinute:   200,
		PriceCents:      12000,
		Status:          status,
	}
}

func (f *bookingFixture) readerUser() *models.User {
	return &models.User{ID: f.reader.UserID, Role: models.RoleReader}
}

func TestBook_ChargesRateTimesMinutes(t *testing.T) {
	f := newBookingFixture(t)
	f.noBookings()
	f.sessions.On("Create", mock.Anything, mock.AnythingOfType("*models.Session")).Return(nil)

	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	sess, err := f.svc.Book(context.Background(), f.client, f.request(start, 60))

	require.NoError(t, err)
	assert.Equal(t, int64(12000), sess.PriceCents)
	assert.Equal(t, int64(200), sess.RatePerMinute)
	assert.Equal(t, f.client.ID, sess.ClientID)
	assert.Equal(t, []string{models.NotifySessionBooked}, f.notifier.to(f.reader.UserID))
	assert.Equal(t, []string{events.SessionBooked}, f.publisher.events)
	f.sessions.AssertExpectations(t)
}

func TestBook_OutsideAvailability(t *testing.T) {
	f := newBookingFixture(t)
	f.noBookings()

	// Tuesday has no rule.
	start := time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC)
	_, err := f.svc.Book(context.Background(), f.client, f.request(start, 30))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// Runs past the end of Monday's window.
	start = time.Date(2026, 10, 19, 16, 30, 0, 0, time.UTC)
	_, err = f.svc.Book(context.Background(), f.client, f.request(start, 60))
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBook_OverlapsExistingSession(t *testing.T) {
	f := newBookingFixture(t)
	existing := f.session(models.SessionConfirmed, time.Date(2026, 10, 19, 10, 30, 0, 0, time.UTC))
	f.sessions.On("ActiveBetween", mock.Anything, f.reader.UserID, mock.Anything, mock.Anything).
		Return([]models.Session{*existing}, nil)

	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	_, err := f.svc.Book(context.Background(), f.client, f.request(start, 60))
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestBook_LostRace(t *testing.T) {
	f := newBookingFixture(t)
	f.noBookings()
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(repositories.ErrSlotTaken)

	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	_, err := f.svc.Book(context.Background(), f.client, f.request(start, 60))
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Empty(t, f.publisher.events)
}

func TestBook_InsufficientFunds(t *testing.T) {
	f := newBookingFixture(t)
	f.noBookings()
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(repositories.ErrInsufficientFunds)

	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	_, err := f.svc.Book(context.Background(), f.client, f.request(start, 60))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestBook_Validation(t *testing.T) {
	f := newBookingFixture(t)
	f.noBookings()
	monday10 := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	cases := map[string]BookRequest{
		"too short":        f.request(monday10, 10),
		"too long":         f.request(monday10, 240),
		"not a slot size":  f.request(monday10, 50),
		"in the past":      f.request(bookingNow.Add(-time.Hour), 30),
		"beyond horizon":   f.request(bookingNow.AddDate(0, 0, 40), 30),
		"unaligned start":  f.request(monday10.Add(7*time.Minute), 30),
		"type not offered": {ReaderID: f.reader.UserID, Type: models.SessionVideo, StartsAt: monday10, DurationMinutes: 30},
		"self booking":     {ReaderID: f.client.ID, Type: models.SessionChat, StartsAt: monday10, DurationMinutes: 30},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Book(context.Background(), f.client, req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestBook_UnapprovedReader(t *testing.T) {
	f := newBookingFixture(t)
	f.reader.Status = models.ReaderSuspended

	_, err := f.svc.Book(context.Background(), f.client, f.request(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), 30))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecline_RefundsClient(t *testing.T) {
	f := newBookingFixture(t)
	sess := f.session(models.SessionPending, time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC))
	f.sessions.On("FindByID", mock.Anything, sess.ID).Return(sess, nil)
	f.sessions.On("Transition", mock.Anything, sess, models.SessionPending,
		mock.MatchedBy(func(entries []models.LedgerEntry) bool {
			return len(entries) == 1 && entries[0].UserID == f.client.ID &&
				entries[0].Type == models.TxSessionRefund && entries[0].AmountCents == 12000
		}), int64(0)).Return(nil)

	out, err := f.svc.Decline(context.Background(), f.readerUser(), sess.ID, "busy")

	require.NoError(t, err)
	assert.Equal(t, models.SessionDeclined, out.Status)
	assert.Equal(t, "busy", out.CancelReason)
	assert.Equal(t, []string{models.NotifySessionDeclined}, f.notifier.to(f.client.ID))
	f.sessions.AssertExpectations(t)
}

func TestConfirm_OnlyTheReader(t *testing.T) {
	f := newBookingFixture(t)
	sess := f.session(models.SessionPending, time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC))
	f.sessions.On("FindByID", mock.Anything, sess.ID).Return(sess, nil)

	_, err := f.svc.Confirm(context.Background(), f.client, sess.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	stranger := &models.User{ID: uuid.New(), Role: models.RoleReader}
	_, err = f.svc.Confirm(context.Background(), stranger, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientCancel_Cutoff(t *testing.T) {
	f := newBookingFixture(t)

	late := f.session(models.SessionConfirmed, bookingNow.Add(3*time.Hour))
	f.sessions.On("FindByID", mock.Anything, late.ID).Return(late, nil)
	_, err := f.svc.Cancel(context.Background(), f.client, late.ID, "")
	assert.ErrorIs(t, err, ErrConflict)
	f.sessions.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	early := f.session(models.SessionConfirmed, bookingNow.Add(48*time.Hour))
	f.sessions.On("FindByID", mock.Anything, early.ID).Return(early, nil)
	f.sessions.On("Transition", mock.Anything, early, models.SessionConfirmed,
		mock.MatchedBy(func(entries []models.LedgerEntry) bool {
			return len(entries) == 1 && entries[0].AmountCents == early.PriceCents
		}), int64(0)).Return(nil)

	out, err := f.svc.Cancel(context.Background(), f.client, early.ID, "change of plans")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, out.Status)
	assert.Equal(t, []string{models.NotifySessionCancelled}, f.notifier.to(f.reader.UserID))
}

func TestReaderCancel_IgnoresCutoff(t *testing.T) {
	f := newBookingFixture(t)
	sess := f.session(models.SessionConfirmed, bookingNow.Add(time.Hour))
	f.sessions.On("FindByID", mock.Anything, sess.ID).Return(sess, nil)
	f.sessions.On("Transition", mock.Anything, sess, models.SessionConfirmed, mock.Anything, int64(0)).Return(nil)

	_, err := f.svc.Cancel(context.Background(), f.readerUser(), sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{models.NotifySessionCancelled}, f.notifier.to(f.client.ID))
}

func TestCancel_AfterStartTime(t *testing.T) {
	f := newBookingFixture(t)
	sess := f.session(models.SessionConfirmed, bookingNow.Add(-10*time.Minute))
	f.sessions.On("FindByID", mock.Anything, sess.ID).Return(sess, nil)

	_, err := f.svc.Cancel(context.Background(), f.readerUser(), sess.ID, "")
	assert.ErrorIs(t, err, ErrConflict)
	f.sessions.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	f.sessions.On("Transition", mock.Anything, sess, models.SessionConfirmed, mock.Anything, int64(0)).Return(nil)
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin}
	out, err := f.svc.Cancel(context.Background(), admin, sess.ID, "no show")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, out.Status)
}

func TestComplete_PaysReaderMinusFee(t *testing.T) {
	f := newBookingFixture(t)
	sess := f.session(models.SessionInProgress, bookingNow.Add(-30*time.Minute))
	f.sessions.On("FindByID", mock.Anything, sess.ID).Return(sess, nil)
	f.sessions.On("Transition", mock.Anything, sess, models.SessionInProgress,
		mock.MatchedBy(func(entries []models.LedgerEntry) bool {
			return len(entries) == 1 && entries[0].UserID == f.reader.UserID &&
				entries[0].Type == models.TxReaderEarning && entries[0].AmountCents == 9600
		}), int64(2400)).Return(nil)

	out, err := f.svc.Complete(context.Background(), f.readerUser(), sess.ID)

	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, out.Status)
	assert.Equal(t, int64(2400), out.FeeCents)
	assert.NotNil(t, out.CompletedAt)
	assert.Contains(t, f.publisher.events, events.SessionCompleted)
	f.sessions.AssertExpectations(t)
}

func TestTransition_Invalid(t *testing.T) {
	f := newBookingFixture(t)
	sess := f.session(models.SessionPending, bookingNow.Add(48*time.Hour))
	f.sessions.On("FindByID", mock.Anything, sess.ID).Return(sess, nil)

	_, err := f.svc.Complete(context.Background(), f.readerUser(), sess.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.SessionPending, sess.Status)

	done := f.session(models.SessionCompleted, bookingNow.Add(-48*time.Hour))
	f.sessions.On("FindByID", mock.Anything, done.ID).Return(done, nil)
	_, err = f.svc.Cancel(context.Background(), f.readerUser(), done.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_ConcurrentChange(t *testing.T) {
	f := newBookingFixture(t)
	sess := f.session(models.SessionPending, bookingNow.Add(48*time.Hour))
	f.sessions.On("FindByID", mock.Anything, sess.ID).Return(sess, nil)
	f.sessions.On("Transition", mock.Anything, sess, models.SessionPending, mock.Anything, int64(0)).
		Return(repositories.ErrStaleState)

	_, err := f.svc.Confirm(context.Background(), f.readerUser(), sess.ID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, models.SessionPending, sess.Status)
}

func TestStart_TooEarly(t *testing.T) {
	f := newBookingFixture(t)
	sess := f.session(models.SessionConfirmed, bookingNow.Add(2*time.Hour))
	f.sessions.On("FindByID", mock.Anything, sess.ID).Return(sess, nil)

	_, err := f.svc.Start(context.Background(), f.readerUser(), sess.ID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestList_IsRoleAware(t *testing.T) {
	f := newBookingFixture(t)
	f.sessions.On("List", mock.Anything, mock.MatchedBy(func(sf models.SessionFilter) bool {
		return sf.ClientID != nil && *sf.ClientID == f.client.ID && sf.ReaderID == nil
	})).Return([]models.Session{}, int64(0), nil).Once()
	f.sessions.On("List", mock.Anything, mock.MatchedBy(func(sf models.SessionFilter) bool {
		return sf.ClientID != nil && sf.ReaderID != nil && *sf.ReaderID == f.reader.UserID
	})).Return([]models.Session{}, int64(0), nil).Once()

	_, err := f.svc.List(context.Background(), f.client, models.SessionFilter{})
	require.NoError(t, err)
	_, err = f.svc.List(context.Background(), f.readerUser(), models.SessionFilter{})
	require.NoError(t, err)
	f.sessions.AssertExpectations(t)
}
