package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumen-backend/internal/models"
)

type UserService struct {
	users    UserStore
	notifier Notifier
	log      *zap.Logger
}

func NewUserService(users UserStore, notifier Notifier, log *zap.Logger) *UserService {
	return &UserService{users: users, notifier: notifier, log: log.Named("users")}
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,min=1,max=80"`
	AvatarURL   *string `json:"avatar_url" binding:"omitempty,url"`
}

type UpdateAccessRequest struct {
	Role   *models.Role       `json:"role" binding:"omitempty,oneof=client reader admin"`
	Status *models.UserStatus `json:"status" binding:"omitempty,oneof=active suspended"`
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*models.User, error) {
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, invalid("display_name must not be blank")
		}
		req.DisplayName = &name
	}
	u, err := s.users.UpdateProfile(ctx, id, req.DisplayName, req.AvatarURL)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.users.SoftDelete(ctx, id); err != nil {
		return translate(err)
	}
	s.log.Info("user deleted", zap.String("user_id", id.String()))
	return nil
}

func (s *UserService) List(ctx context.Context, f models.UserFilter) (models.List[models.User], error) {
	items, total, err := s.users.List(ctx, f)
	if err != nil {
		return models.List[models.User]{}, err
	}
	return models.NewList(items, total, f.Page), nil
}

// UpdateAccess lets an admin change role or status. Admins cannot demote or
// suspend themselves.
func (s *UserService) UpdateAccess(ctx context.Context, actorID, id uuid.UUID, req UpdateAccessRequest) (*models.User, error) {
	if req.Role == nil && req.Status == nil {
		return nil, invalid("nothing to update")
	}
	if req.Role != nil && !req.Role.Valid() {
		return nil, invalid("unknown role %q", *req.Role)
	}
	if actorID == id {
		if (req.Role != nil && *req.Role != models.RoleAdmin) || (req.Status != nil && *req.Status != models.UserActive) {
			return nil, invalid("admins cannot demote or suspend themselves")
		}
	}

	u, err := s.users.UpdateAccess(ctx, id, req.Role, req.Status)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	s.log.Info("user access changed", zap.String("user_id", id.String()), zap.String("by", actorID.String()),
		zap.String("role", string(u.Role)), zap.String("status", string(u.Status)))
	s.notifier.Notify(ctx, u.ID, models.NotifyAccount, "Account updated",
		"Your account is now "+string(u.Status)+" with the "+string(u.Role)+" role.",
		obj{"role": u.Role, "status": u.Status})
	return u, nil
}

// Promote makes the user with the given email an admin. Used by lumenctl.
func (s *UserService) Promote(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	users, _, err := s.users.List(ctx, models.UserFilter{Query: email, Page: models.Page{Limit: models.MaxPageSize}})
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			role := models.RoleAdmin
			return s.users.UpdateAccess(ctx, u.ID, &role, nil)
		}
	}
	return nil, ErrNotFound
}
