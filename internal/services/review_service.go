package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumen-backend/internal/events"
	"lumen-backend/internal/models"
)

type ReviewService struct {
	reviews   ReviewStore
	sessions  SessionStore
	notifier  Notifier
	publisher Publisher
	log       *zap.Logger
}

func NewReviewService(reviews ReviewStore, sessions SessionStore, notifier Notifier, publisher Publisher, log *zap.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, sessions: sessions, notifier: notifier, publisher: publisher, log: log.Named("reviews")}
}

type ReviewRequest struct {
	SessionID uuid.UUID `json:"session_id" binding:"required"`
	Rating    int       `json:"rating" binding:"required,min=1,max=5"`
	Comment   string    `json:"comment" binding:"max=4000"`
}

type RespondRequest struct {
	Response string `json:"response" binding:"required,max=4000"`
}

// Create reviews a completed session. Only its client may review it, once.
func (s *ReviewService) Create(ctx context.Context, clientID uuid.UUID, req ReviewRequest) (*models.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, invalid("rating must be between 1 and 5")
	}
	sess, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	if sess.ClientID != clientID {
		return nil, ErrForbidden
	}
	if sess.Status != models.SessionCompleted {
		return nil, invalid("only completed sessions can be reviewed")
	}

	existing, err := s.reviews.FindBySession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: session already reviewed", ErrConflict)
	}

	rv := &models.Review{
		SessionID: sess.ID,
		ClientID:  clientID,
		ReaderID:  sess.ReaderID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.reviews.Create(ctx, rv); err != nil {
		return nil, translate(err)
	}

	s.notifier.Notify(ctx, rv.ReaderID, models.NotifyReview, "New review",
		fmt.Sprintf("You received a %d star review.", rv.Rating), obj{"review_id": rv.ID, "rating": rv.Rating})
	if err := s.publisher.Publish(ctx, events.ReviewCreated, obj{
		"review_id": rv.ID.String(),
		"reader_id": rv.ReaderID.String(),
		"rating":    rv.Rating,
	}); err != nil {
		s.log.Warn("publish failed", zap.String("event", events.ReviewCreated), zap.Error(err))
	}
	return rv, nil
}

// ForReader is the public list of a reader's published reviews.
func (s *ReviewService) ForReader(ctx context.Context, readerID uuid.UUID, p models.Page) (models.List[models.Review], error) {
	return s.List(ctx, models.ReviewFilter{ReaderID: &readerID, Status: models.ReviewPublished, Page: p})
}

func (s *ReviewService) List(ctx context.Context, f models.ReviewFilter) (models.List[models.Review], error) {
	if f.Status != "" && !f.Status.Valid() {
		return models.List[models.Review]{}, invalid("unknown status %q", f.Status)
	}
	items, total, err := s.reviews.List(ctx, f)
	if err != nil {
		return models.List[models.Review]{}, err
	}
	return models.NewList(items, total, f.Page), nil
}

// Respond stores the reader's single public reply.
func (s *ReviewService) Respond(ctx context.Context, readerID, id uuid.UUID, response string) (*models.Review, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, invalid("response must not be blank")
	}
	rv, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rv == nil {
		return nil, ErrNotFound
	}
	if rv.ReaderID != readerID {
		return nil, ErrForbidden
	}
	if rv.Response != nil {
		return nil, fmt.Errorf("%w: review already has a response", ErrConflict)
	}
	out, err := s.reviews.Respond(ctx, id, response)
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// Moderate changes visibility; the repository recomputes the reader rating.
func (s *ReviewService) Moderate(ctx context.Context, adminID, id uuid.UUID, status models.ReviewStatus) (*models.Review, error) {
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	rv, err := s.reviews.SetStatus(ctx, id, status)
	if err != nil {
		return nil, translate(err)
	}
	if rv == nil {
		return nil, ErrNotFound
	}
	s.log.Info("review moderated", zap.String("review_id", id.String()),
		zap.String("status", string(status)), zap.String("by", adminID.String()))
	return rv, nil
}
