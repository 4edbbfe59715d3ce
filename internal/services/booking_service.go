package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumen-backend/internal/config"
	"lumen-backend/internal/events"
	"lumen-backend/internal/models"
	"lumen-backend/internal/pricing"
	"lumen-backend/internal/scheduling"
)

const (
	minSessionMinutes = 15
	maxSessionMinutes = 180
	earlyStart        = 15 * time.Minute
)

type BookingService struct {
	sessions     SessionStore
	readers      ReaderStore
	availability *AvailabilityService
	notifier     Notifier
	pusher       Pusher
	publisher    Publisher
	cfg          config.MarketplaceConfig
	log          *zap.Logger
	now          func() time.Time
}

func NewBookingService(sessions SessionStore, readers ReaderStore, availability *AvailabilityService,
	notifier Notifier, publisher Publisher, cfg config.MarketplaceConfig, log *zap.Logger) *BookingService {
	return &BookingService{
		sessions:     sessions,
		readers:      readers,
		availability: availability,
		notifier:     notifier,
		pusher:       nopPusher{},
		publisher:    publisher,
		cfg:          cfg,
		log:          log.Named("booking"),
		now:          time.Now,
	}
}

func (s *BookingService) SetPusher(p Pusher) {
	s.pusher = p
}

type BookRequest struct {
	ReaderID        uuid.UUID          `json:"reader_id" binding:"required"`
	Type            models.SessionType `json:"type" binding:"required,oneof=chat voice video"`
	StartsAt        time.Time          `json:"starts_at" binding:"required"`
	DurationMinutes int                `json:"duration_minutes" binding:"required"`
	Notes           string             `json:"notes" binding:"max=2000"`
}

type CancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// Book reserves a slot and charges the client. The repository re-checks the
// slot under a per-reader lock, so two clients racing for the same time get
// one session and one ErrSlotUnavailable.
func (s *BookingService) Book(ctx context.Context, client *models.User, req BookRequest) (*models.Session, error) {
	if client.ID == req.ReaderID {
		return nil, invalid("cannot book a session with yourself")
	}
	if !req.Type.Valid() {
		return nil, invalid("unknown session type %q", req.Type)
	}
	if err := s.validDuration(req.DurationMinutes); err != nil {
		return nil, err
	}

	reader, err := s.readers.FindByID(ctx, req.ReaderID)
	if err != nil {
		return nil, err
	}
	if reader == nil || reader.Status != models.ReaderApproved {
		return nil, fmt.Errorf("%w: reader", ErrNotFound)
	}
	if !reader.Offers(req.Type) {
		return nil, invalid("reader does not offer %s sessions", req.Type)
	}

	now := s.now()
	start := req.StartsAt.UTC()
	if !start.After(now) {
		return nil, invalid("starts_at must be in the future")
	}
	if start.After(now.AddDate(0, 0, s.cfg.MaxBookingDays)) {
		return nil, invalid("sessions can be booked at most %d days ahead", s.cfg.MaxBookingDays)
	}
	loc, err := reader.Location()
	if err != nil {
		return nil, fmt.Errorf("reader timezone: %w", err)
	}
	slot := time.Duration(s.cfg.SlotMinutes) * time.Minute
	if !scheduling.Aligned(start, slot, loc) {
		return nil, invalid("starts_at must align to %d minute slots", s.cfg.SlotMinutes)
	}

	want := scheduling.Interval{Start: start, End: start.Add(time.Duration(req.DurationMinutes) * time.Minute)}
	free, err := s.availability.windows(ctx, reader, want.Start, want.End, req.Type)
	if err != nil {
		return nil, err
	}
	if !scheduling.Covered(free, want) {
		return nil, ErrSlotUnavailable
	}

	rate := reader.Rate(req.Type)
	price, err := pricing.SessionPrice(rate, req.DurationMinutes)
	if err != nil {
		return nil, translate(err)
	}

	sess := &models.Session{
		ClientID:        client.ID,
		ReaderID:        reader.UserID,
		Type:            req.Type,
		StartsAt:        start,
		DurationMinutes: req.DurationMinutes,
		RatePerMinute:   rate,
		PriceCents:      price,
		Notes:           req.Notes,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, translate(err)
	}
	s.log.Info("session booked", zap.String("session_id", sess.ID.String()),
		zap.String("reader_id", sess.ReaderID.String()), zap.Int64("price_cents", price))

	s.notifier.Notify(ctx, sess.ReaderID, models.NotifySessionBooked, "New booking request",
		fmt.Sprintf("%s requested a %d minute %s session.", client.DisplayName, sess.DurationMinutes, sess.Type),
		sessionData(sess))
	s.emit(ctx, events.SessionBooked, sess, client.ID, "")
	return sess, nil
}

func (s *BookingService) validDuration(minutes int) error {
	if minutes < minSessionMinutes || minutes > maxSessionMinutes {
		return invalid("duration must be between %d and %d minutes", minSessionMinutes, maxSessionMinutes)
	}
	if minutes%s.cfg.SlotMinutes != 0 {
		return invalid("duration must be a multiple of %d minutes", s.cfg.SlotMinutes)
	}
	return nil
}

// Get returns a session visible to the caller.
func (s *BookingService) Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.Session, error) {
	sess, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	if !sess.IsParticipant(user.ID) && user.Role != models.RoleAdmin {
		return nil, ErrNotFound
	}
	return sess, nil
}

// List is role-aware: clients see their bookings, readers see sessions on
// both sides, admins see everything.
func (s *BookingService) List(ctx context.Context, user *models.User, f models.SessionFilter) (models.List[models.Session], error) {
	if f.Status != "" && !validSessionStatus(f.Status) {
		return models.List[models.Session]{}, invalid("unknown status %q", f.Status)
	}
	switch user.Role {
	case models.RoleAdmin:
	case models.RoleReader:
		f.ClientID, f.ReaderID = &user.ID, &user.ID
	default:
		f.ClientID, f.ReaderID = &user.ID, nil
	}
	items, total, err := s.sessions.List(ctx, f)
	if err != nil {
		return models.List[models.Session]{}, err
	}
	return models.NewList(items, total, f.Page), nil
}

func validSessionStatus(st models.SessionStatus) bool {
	switch st {
	case models.SessionPending, models.SessionConfirmed, models.SessionInProgress,
		models.SessionCompleted, models.SessionCancelled, models.SessionDeclined:
		return true
	}
	return false
}

func (s *BookingService) Confirm(ctx context.Context, user *models.User, id uuid.UUID) (*models.Session, error) {
	sess, err := s.readerOwned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, sess, models.SessionConfirmed, nil, 0); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, sess.ClientID, models.NotifySessionConfirmed, "Session confirmed",
		"Your reader confirmed the session.", sessionData(sess))
	s.emit(ctx, events.SessionConfirmed, sess, user.ID, "")
	return sess, nil
}

// Decline rejects a pending request and refunds the client in full.
func (s *BookingService) Decline(ctx context.Context, user *models.User, id uuid.UUID, reason string) (*models.Session, error) {
	sess, err := s.readerOwned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess.CancelledBy, sess.CancelReason, sess.CancelledAt = &user.ID, reason, &now
	if err := s.transition(ctx, sess, models.SessionDeclined, refund(sess), 0); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, sess.ClientID, models.NotifySessionDeclined, "Session declined",
		"Your reader declined the session. The full amount was refunded.", sessionData(sess))
	s.emit(ctx, events.SessionDeclined, sess, user.ID, reason)
	return sess, nil
}

// Start moves a confirmed session in progress. It may begin at most a
// quarter hour early.
func (s *BookingService) Start(ctx context.Context, user *models.User, id uuid.UUID) (*models.Session, error) {
	sess, err := s.readerOwned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if sess.Status == models.SessionConfirmed && now.Before(sess.StartsAt.Add(-earlyStart)) {
		return nil, invalid("session cannot start before %s", sess.StartsAt.Add(-earlyStart).Format(time.RFC3339))
	}
	sess.StartedAt = &now
	if err := s.transition(ctx, sess, models.SessionInProgress, nil, 0); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, sess.ClientID, models.NotifySessionStarted, "Session started",
		"Your reader has started the session.", sessionData(sess))
	s.emit(ctx, events.SessionStarted, sess, user.ID, "")
	return sess, nil
}

// Complete pays the reader the price minus the platform fee.
func (s *BookingService) Complete(ctx context.Context, user *models.User, id uuid.UUID) (*models.Session, error) {
	sess, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.ReaderID != user.ID && user.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	now := s.now().UTC()
	sess.CompletedAt = &now

	earning, fee := pricing.SplitFee(sess.PriceCents, s.cfg.PlatformFeeBps)
	sess.FeeCents = fee
	var entries []models.LedgerEntry
	if earning > 0 {
		sid := sess.ID
		entries = append(entries, models.LedgerEntry{
			UserID:      sess.ReaderID,
			Type:        models.TxReaderEarning,
			AmountCents: earning,
			Description: fmt.Sprintf("%s session, %d min", sess.Type, sess.DurationMinutes),
			RelatedID:   &sid,
		})
	}
	if err := s.transition(ctx, sess, models.SessionCompleted, entries, fee); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, sess.ClientID, models.NotifySessionCompleted, "Session completed",
		"Your session is complete. Leave a review to help others find great readers.", sessionData(sess))
	s.notifier.Notify(ctx, sess.ReaderID, models.NotifySessionCompleted, "Earnings credited",
		fmt.Sprintf("%d cents were added to your balance.", earning), sessionData(sess))
	s.emit(ctx, events.SessionCompleted, sess, user.ID, "")
	return sess, nil
}

// Cancel refunds the client. Clients may only cancel until the cutoff before
// the start and readers until the start itself. Admins may also cancel a
// session whose start has passed without it being started.
func (s *BookingService) Cancel(ctx context.Context, user *models.User, id uuid.UUID, reason string) (*models.Session, error) {
	sess, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	isAdmin := user.Role == models.RoleAdmin
	if !sess.IsParticipant(user.ID) && !isAdmin {
		return nil, ErrNotFound
	}
	if !models.CanTransition(sess.Status, models.SessionCancelled) {
		return nil, ErrInvalidTransition
	}
	now := s.now().UTC()
	if sess.ClientID == user.ID && !isAdmin && sess.StartsAt.Sub(now) < s.cfg.CancellationCutoff {
		return nil, fmt.Errorf("%w: sessions can no longer be cancelled less than %s before the start",
			ErrConflict, s.cfg.CancellationCutoff)
	}
	if !isAdmin && !now.Before(sess.StartsAt) {
		return nil, fmt.Errorf("%w: the session start time has passed", ErrConflict)
	}

	sess.CancelledBy, sess.CancelReason, sess.CancelledAt = &user.ID, reason, &now
	if err := s.transition(ctx, sess, models.SessionCancelled, refund(sess), 0); err != nil {
		return nil, err
	}

	other := sess.ReaderID
	if user.ID == sess.ReaderID {
		other = sess.ClientID
	}
	s.notifier.Notify(ctx, other, models.NotifySessionCancelled, "Session cancelled",
		"A session was cancelled. Any payment was refunded to the client.", sessionData(sess))
	if isAdmin && !sess.IsParticipant(user.ID) {
		s.notifier.Notify(ctx, sess.ClientID, models.NotifySessionCancelled, "Session cancelled",
			"An administrator cancelled your session. The full amount was refunded.", sessionData(sess))
	}
	s.emit(ctx, events.SessionCancelled, sess, user.ID, reason)
	return sess, nil
}

func (s *BookingService) find(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	sess, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *BookingService) readerOwned(ctx context.Context, user *models.User, id uuid.UUID) (*models.Session, error) {
	sess, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.ReaderID != user.ID {
		if sess.ClientID == user.ID {
			return nil, ErrForbidden
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

// transition checks the lifecycle table and stores the change. A session
// changed concurrently surfaces as ErrConflict.
func (s *BookingService) transition(ctx context.Context, sess *models.Session, to models.SessionStatus, entries []models.LedgerEntry, fee int64) error {
	from := sess.Status
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	sess.Status = to
	if err := s.sessions.Transition(ctx, sess, from, entries, fee); err != nil {
		sess.Status = from
		return translate(err)
	}
	s.log.Info("session transition", zap.String("session_id", sess.ID.String()),
		zap.String("from", string(from)), zap.String("to", string(to)))

	frame := obj{"session": sess}
	for _, uid := range []uuid.UUID{sess.ClientID, sess.ReaderID} {
		if err := s.pusher.SendTypedMessage(uid.String(), FrameSession, frame); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Debug("push failed", zap.Error(err))
		}
	}
	return nil
}

func (s *BookingService) emit(ctx context.Context, eventType string, sess *models.Session, actor uuid.UUID, reason string) {
	err := s.publisher.Publish(ctx, eventType, events.SessionPayload{
		SessionID:  sess.ID.String(),
		ClientID:   sess.ClientID.String(),
		ReaderID:   sess.ReaderID.String(),
		Type:       string(sess.Type),
		StartsAt:   sess.StartsAt,
		Minutes:    sess.DurationMinutes,
		PriceCents: sess.PriceCents,
		Status:     string(sess.Status),
		ActorID:    actor.String(),
		Reason:     reason,
	})
	if err != nil {
		s.log.Warn("publish failed", zap.String("event", eventType), zap.Error(err))
	}
}

func refund(sess *models.Session) []models.LedgerEntry {
	if sess.PriceCents == 0 {
		return nil
	}
	id := sess.ID
	return []models.LedgerEntry{{
		UserID:      sess.ClientID,
		Type:        models.TxSessionRefund,
		AmountCents: sess.PriceCents,
		Description: fmt.Sprintf("refund for %s session", sess.Type),
		RelatedID:   &id,
	}}
}

func sessionData(sess *models.Session) map[string]any {
	return obj{"session_id": sess.ID, "status": sess.Status, "starts_at": sess.StartsAt}
}
