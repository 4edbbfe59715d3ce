package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumen-backend/internal/models"
)

// Realtime frame types pushed to clients.
const (
	FrameNotification = "notification"
	FrameUnreadCount  = "unread_count"
	FrameChatMessage  = "chat_message"
	FrameChatRead     = "chat_read"
	FrameTyping       = "typing"
	FrameSession      = "session_update"
)

type NotificationService struct {
	repo   NotificationStore
	cache  Counters
	pusher Pusher
	log    *zap.Logger
}

func NewNotificationService(repo NotificationStore, cache Counters, pusher Pusher, log *zap.Logger) *NotificationService {
	if pusher == nil {
		pusher = nopPusher{}
	}
	return &NotificationService{repo: repo, cache: cache, pusher: pusher, log: log.Named("notifications")}
}

// SetPusher swaps the realtime channel once the hub exists.
func (s *NotificationService) SetPusher(p Pusher) {
	s.pusher = p
}

// Notify stores an in-app notification and pushes it with the new unread
// count. Delivery problems are logged, never returned.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, kind, title, body string, data map[string]any) {
	if _, err := s.Create(ctx, userID, kind, title, body, data); err != nil {
		s.log.Warn("notify failed", zap.String("user_id", userID.String()), zap.String("type", kind), zap.Error(err))
	}
}

// Create is Notify with the error returned. Muted types and users with in-app
// delivery disabled get nothing and a nil notification.
func (s *NotificationService) Create(ctx context.Context, userID uuid.UUID, kind, title, body string, data map[string]any) (*models.Notification, error) {
	prefs, err := s.repo.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !prefs.InAppEnabled || prefs.Muted(kind) {
		return nil, nil
	}

	n := &models.Notification{UserID: userID, Type: kind, Title: title, Body: body, Data: data}
	unread, err := s.repo.Create(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	s.storeCount(ctx, userID, unread)

	if err := s.pusher.SendTypedMessage(userID.String(), FrameNotification, obj{
		"notification": n,
		"unread_count": unread,
	}); err != nil {
		s.log.Debug("push failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, f models.NotificationFilter) (models.List[models.Notification], error) {
	items, total, err := s.repo.List(ctx, userID, f)
	if err != nil {
		return models.List[models.Notification]{}, err
	}
	return models.NewList(items, total, f.Page), nil
}

// UnreadCount serves the cached counter and falls back to counting rows,
// refilling the cache.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, ok, err := s.cache.UnreadCount(ctx, userID)
	if err != nil {
		s.log.Warn("unread cache read failed", zap.Error(err))
	}
	if ok && err == nil {
		return n, nil
	}
	n, err = s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.storeCount(ctx, userID, n)
	return n, nil
}

// MarkRead marks one notification read. The returned count is the one the
// database committed together with the update.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) (int64, error) {
	unread, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return 0, translate(err)
	}
	s.publishCount(ctx, userID, unread)
	return unread, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (updated, unread int64, err error) {
	updated, unread, err = s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	s.publishCount(ctx, userID, unread)
	return updated, unread, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uuid.UUID) (int64, error) {
	unread, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return 0, translate(err)
	}
	s.publishCount(ctx, userID, unread)
	return unread, nil
}

func (s *NotificationService) Preferences(ctx context.Context, userID uuid.UUID) (models.NotificationPreferences, error) {
	return s.repo.Preferences(ctx, userID)
}

type PreferencesRequest struct {
	InAppEnabled *bool    `json:"in_app_enabled"`
	EmailEnabled *bool    `json:"email_enabled"`
	MutedTypes   []string `json:"muted_types"`
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, userID uuid.UUID, req PreferencesRequest) (models.NotificationPreferences, error) {
	prefs, err := s.repo.Preferences(ctx, userID)
	if err != nil {
		return prefs, err
	}
	if req.InAppEnabled != nil {
		prefs.InAppEnabled = *req.InAppEnabled
	}
	if req.EmailEnabled != nil {
		prefs.EmailEnabled = *req.EmailEnabled
	}
	if req.MutedTypes != nil {
		prefs.MutedTypes = req.MutedTypes
	}
	prefs.UserID = userID
	if err := s.repo.SavePreferences(ctx, &prefs); err != nil {
		return prefs, err
	}
	return prefs, nil
}

// WantsEmail reports whether kind may be emailed to the user.
func (s *NotificationService) WantsEmail(ctx context.Context, userID uuid.UUID, kind string) (bool, error) {
	prefs, err := s.repo.Preferences(ctx, userID)
	if err != nil {
		return false, err
	}
	return prefs.EmailEnabled && !prefs.Muted(kind), nil
}

func (s *NotificationService) storeCount(ctx context.Context, userID uuid.UUID, n int64) {
	if err := s.cache.SetUnreadCount(ctx, userID, n); err != nil {
		s.log.Warn("unread cache write failed", zap.String("user_id", userID.String()), zap.Error(err))
		_ = s.cache.DeleteUnreadCount(ctx, userID)
	}
}

func (s *NotificationService) publishCount(ctx context.Context, userID uuid.UUID, n int64) {
	s.storeCount(ctx, userID, n)
	_ = s.pusher.SendTypedMessage(userID.String(), FrameUnreadCount, obj{"unread_count": n})
}

// obj is a JSON object literal for frames and event payloads.
type obj = map[string]any
