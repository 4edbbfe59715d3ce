package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/models"
	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

const (
	userKey   = "user"
	userIDKey = "userId"
)

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func Authenticate(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			responses.Abort(c, http.StatusUnauthorized, nil, "Missing Authorization header")
			return
		}
		token, ok := BearerToken(c)
		if !ok {
			responses.Abort(c, http.StatusUnauthorized, nil, "Invalid Authorization format")
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		switch {
		case errors.Is(err, services.ErrForbidden):
			responses.Abort(c, http.StatusForbidden, err, "Account suspended")
			return
		case errors.Is(err, services.ErrUnauthorized):
			responses.Abort(c, http.StatusUnauthorized, err, "Invalid or expired token")
			return
		case errors.Is(err, services.ErrUnavailable):
			responses.Abort(c, http.StatusServiceUnavailable, nil, "Authentication temporarily unavailable")
			_ = c.Error(err)
			return
		case err != nil:
			responses.Abort(c, http.StatusInternalServerError, nil, "Failed to authenticate")
			_ = c.Error(err)
			return
		}

		c.Set(userKey, user)
		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

// OptionalAuthenticate attaches the user when a valid token is sent and
// lets anonymous requests through.
func OptionalAuthenticate(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := BearerToken(c); ok {
			if user, err := auth.Authenticate(c.Request.Context(), token); err == nil {
				SetUser(c, user)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by Authenticate.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// SetUser stores u the way Authenticate does. Handler tests use it.
func SetUser(c *gin.Context, u *models.User) {
	c.Set(userKey, u)
	c.Set(userIDKey, u.ID)
}
