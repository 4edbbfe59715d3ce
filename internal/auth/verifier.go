// Package auth verifies the bearer ID tokens sent by clients.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"lumen-backend/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrUnknownKey   = errors.New("token signed with unknown key")
	// ErrKeysUnavailable means the token could not be checked because the
	// signing certificates could not be fetched.
	ErrKeysUnavailable = errors.New("signing keys unavailable")
)

// Claims are the ID token fields the API relies on. Subject is the Firebase
// user id.
type Claims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	AuthTime      int64  `json:"auth_time,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UID() string {
	return c.Subject
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// chain tries each verifier in turn and returns the first success.
type chain []Verifier

func (c chain) Verify(ctx context.Context, token string) (*Claims, error) {
	var lastErr, unavailable error = ErrInvalidToken, nil
	for _, v := range c {
		claims, err := v.Verify(ctx, token)
		if err == nil {
			return claims, nil
		}
		if errors.Is(err, ErrKeysUnavailable) {
			unavailable = err
		}
		lastErr = err
	}
	if unavailable != nil {
		return nil, unavailable
	}
	return nil, lastErr
}

// NewVerifier builds the verifier described by the configuration. When both
// a project and a dev secret are configured, Firebase tokens are tried first.
func NewVerifier(cfg config.FirebaseConfig) (Verifier, error) {
	var verifiers chain
	if cfg.ProjectID != "" {
		verifiers = append(verifiers, NewFirebaseVerifier(cfg.ProjectID, cfg.CertsURL, nil))
	}
	if cfg.DevSecret != "" {
		verifiers = append(verifiers, NewDevVerifier(cfg.DevSecret))
	}
	switch len(verifiers) {
	case 0:
		return nil, fmt.Errorf("no token verifier configured")
	case 1:
		return verifiers[0], nil
	}
	return verifiers, nil
}
