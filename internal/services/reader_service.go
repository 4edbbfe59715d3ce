package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumen-backend/internal/events"
	"lumen-backend/internal/models"
)

type ReaderService struct {
	readers   ReaderStore
	users     UserStore
	notifier  Notifier
	publisher Publisher
	log       *zap.Logger
}

func NewReaderService(readers ReaderStore, users UserStore, notifier Notifier, publisher Publisher, log *zap.Logger) *ReaderService {
	return &ReaderService{readers: readers, users: users, notifier: notifier, publisher: publisher, log: log.Named("readers")}
}

type ReaderProfileRequest struct {
	DisplayName string   `json:"display_name" binding:"required,min=2,max=80"`
	Bio         string   `json:"bio" binding:"max=4000"`
	Specialties []string `json:"specialties" binding:"max=20,dive,min=2,max=40"`
	ChatRate    int64    `json:"chat_rate_cents" binding:"min=0,max=100000"`
	VoiceRate   int64    `json:"voice_rate_cents" binding:"min=0,max=100000"`
	VideoRate   int64    `json:"video_rate_cents" binding:"min=0,max=100000"`
	Timezone    string   `json:"timezone" binding:"required"`
}

func (r ReaderProfileRequest) validate() error {
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return invalid("unknown timezone %q", r.Timezone)
	}
	if r.ChatRate == 0 && r.VoiceRate == 0 && r.VideoRate == 0 {
		return invalid("at least one session type must have a rate")
	}
	return nil
}

func (r ReaderProfileRequest) apply(p *models.ReaderProfile) {
	p.DisplayName = r.DisplayName
	p.Bio = r.Bio
	p.Specialties = r.Specialties
	p.ChatRate = r.ChatRate
	p.VoiceRate = r.VoiceRate
	p.VideoRate = r.VideoRate
	p.Timezone = r.Timezone
}

// Apply creates a pending reader profile for a client.
func (s *ReaderService) Apply(ctx context.Context, user *models.User, req ReaderProfileRequest) (*models.ReaderProfile, error) {
	if user.Role != models.RoleClient {
		return nil, invalid("only client accounts can apply to become readers")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	p := &models.ReaderProfile{UserID: user.ID, Status: models.ReaderPending}
	req.apply(p)
	if err := s.readers.Create(ctx, p); err != nil {
		return nil, translate(err)
	}
	s.log.Info("reader application", zap.String("user_id", user.ID.String()))

	admins, err := s.users.FindAdmins(ctx)
	if err != nil {
		s.log.Warn("load admins", zap.Error(err))
	}
	for _, a := range admins {
		s.notifier.Notify(ctx, a.ID, models.NotifyAccount, "New reader application",
			p.DisplayName+" applied to become a reader.", obj{"reader_id": p.UserID})
	}
	return p, nil
}

func (s *ReaderService) Me(ctx context.Context, id uuid.UUID) (*models.ReaderProfile, error) {
	p, err := s.readers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *ReaderService) UpdateMe(ctx context.Context, id uuid.UUID, req ReaderProfileRequest) (*models.ReaderProfile, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	p, err := s.Me(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(p)
	if err := s.readers.Update(ctx, p); err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// SetOnline toggles the presence flag. Only approved readers can go online.
func (s *ReaderService) SetOnline(ctx context.Context, id uuid.UUID, online bool) (*models.ReaderProfile, error) {
	p, err := s.Me(ctx, id)
	if err != nil {
		return nil, err
	}
	if online && p.Status != models.ReaderApproved {
		return nil, ErrForbidden
	}
	if err := s.readers.SetOnline(ctx, id, online); err != nil {
		return nil, translate(err)
	}
	p.Online = online
	return p, nil
}

// Browse is the public listing. Only approved readers are visible.
func (s *ReaderService) Browse(ctx context.Context, f models.ReaderFilter) (models.List[models.ReaderProfile], error) {
	f.Status = models.ReaderApproved
	return s.list(ctx, f)
}

// ListByStatus is the admin listing; an empty status lists everyone.
func (s *ReaderService) ListByStatus(ctx context.Context, f models.ReaderFilter) (models.List[models.ReaderProfile], error) {
	return s.list(ctx, f)
}

func (s *ReaderService) list(ctx context.Context, f models.ReaderFilter) (models.List[models.ReaderProfile], error) {
	if f.SessionType != "" && !f.SessionType.Valid() {
		return models.List[models.ReaderProfile]{}, invalid("unknown session_type %q", f.SessionType)
	}
	switch f.Sort {
	case "", models.SortRating, models.SortPrice, models.SortReviews, models.SortNewest:
	default:
		return models.List[models.ReaderProfile]{}, invalid("unknown sort %q", f.Sort)
	}
	if f.MinRating != nil && (*f.MinRating < 0 || *f.MinRating > 5) {
		return models.List[models.ReaderProfile]{}, invalid("min_rating must be between 0 and 5")
	}
	if f.MaxPrice != nil && *f.MaxPrice < 0 {
		return models.List[models.ReaderProfile]{}, invalid("max_price must not be negative")
	}
	items, total, err := s.readers.List(ctx, f)
	if err != nil {
		return models.List[models.ReaderProfile]{}, err
	}
	return models.NewList(items, total, f.Page), nil
}

// Get returns a reader profile. Non-approved profiles are only visible to
// the reader and admins.
func (s *ReaderService) Get(ctx context.Context, viewer *models.User, id uuid.UUID) (*models.ReaderProfile, error) {
	p, err := s.Me(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ReaderApproved {
		if viewer == nil || (viewer.ID != id && viewer.Role != models.RoleAdmin) {
			return nil, ErrNotFound
		}
	}
	return p, nil
}

func (s *ReaderService) Approve(ctx context.Context, adminID, id uuid.UUID) (*models.ReaderProfile, error) {
	return s.setStatus(ctx, adminID, id, models.ReaderApproved, "Your reader application was approved. Welcome aboard!")
}

func (s *ReaderService) Suspend(ctx context.Context, adminID, id uuid.UUID) (*models.ReaderProfile, error) {
	return s.setStatus(ctx, adminID, id, models.ReaderSuspended, "Your reader profile has been suspended.")
}

// Reinstate lifts a suspension.
func (s *ReaderService) Reinstate(ctx context.Context, adminID, id uuid.UUID) (*models.ReaderProfile, error) {
	current, err := s.Me(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.ReaderSuspended {
		return nil, ErrInvalidTransition
	}
	return s.setStatus(ctx, adminID, id, models.ReaderApproved, "Your reader profile has been reinstated.")
}

func (s *ReaderService) setStatus(ctx context.Context, adminID, id uuid.UUID, status models.ReaderStatus, message string) (*models.ReaderProfile, error) {
	p, err := s.readers.SetStatus(ctx, id, status)
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info("reader status changed", zap.String("reader_id", id.String()),
		zap.String("status", string(status)), zap.String("by", adminID.String()))

	kind := models.NotifyAccount
	if status == models.ReaderApproved {
		kind = models.NotifyReaderApproved
		if err := s.publisher.Publish(ctx, events.ReaderApproved, obj{"reader_id": id.String()}); err != nil {
			s.log.Warn("publish failed", zap.String("event", events.ReaderApproved), zap.Error(err))
		}
	}
	s.notifier.Notify(ctx, id, kind, "Reader status: "+string(status), message, obj{"status": status})
	return p, nil
}
