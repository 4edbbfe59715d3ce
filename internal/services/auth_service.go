package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lumen-backend/internal/auth"
	"lumen-backend/internal/models"
)

type AuthService struct {
	verifier auth.Verifier
	users    UserStore
	log      *zap.Logger
}

func NewAuthService(verifier auth.Verifier, users UserStore, log *zap.Logger) *AuthService {
	return &AuthService{verifier: verifier, users: users, log: log.Named("auth")}
}

// Verify checks the bearer token and returns its claims.
func (s *AuthService) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.verifier.Verify(ctx, token)
	if errors.Is(err, auth.ErrKeysUnavailable) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims, nil
}

// Authenticate resolves a token to an active user. Unknown users are
// unauthorized, suspended or deleted ones forbidden.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByFirebaseUID(ctx, claims.UID())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: no account for this token, start a session first", ErrUnauthorized)
	}
	if !user.IsActive() {
		return nil, fmt.Errorf("%w: account is suspended", ErrForbidden)
	}
	return user, nil
}

// StartSession creates the account on first sign-in or refreshes it on
// later ones. The very first account becomes an admin.
func (s *AuthService) StartSession(ctx context.Context, token string) (*models.User, bool, error) {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return nil, false, err
	}

	u := &models.User{
		FirebaseUID: claims.UID(),
		Email:       claims.Email,
		DisplayName: claims.Name,
		Role:        models.RoleClient,
	}
	if claims.Picture != "" {
		pic := claims.Picture
		u.AvatarURL = &pic
	}

	created, err := s.users.Upsert(ctx, u, models.RoleAdmin)
	if err != nil {
		return nil, false, fmt.Errorf("upsert user: %w", err)
	}
	if !u.IsActive() {
		return nil, false, fmt.Errorf("%w: account is suspended", ErrForbidden)
	}
	if created {
		s.log.Info("user created", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	}
	return u, created, nil
}

// SocketAuth adapts Authenticate to the websocket hub.
func (s *AuthService) SocketAuth(ctx context.Context, token string) (string, string, error) {
	u, err := s.Authenticate(ctx, token)
	if err != nil {
		return "", "", err
	}
	return u.ID.String(), string(u.Role), nil
}

// IsAuthError reports whether err should end the request with 401 or 403.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}
