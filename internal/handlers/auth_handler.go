package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/middlewares"
	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// StartSession handles POST /api/v1/auth/session. The bearer token is the
// only input; the account is created on first sign-in.
func (h *AuthHandler) StartSession(c *gin.Context) {
	token, ok := middlewares.BearerToken(c)
	if !ok {
		responses.Fail(c, http.StatusUnauthorized, nil, "Missing or invalid Authorization header")
		return
	}

	user, created, err := h.authService.StartSession(c.Request.Context(), token)
	if err != nil {
		fail(c, err, "Could not start session")
		return
	}

	if created {
		responses.Success(c, http.StatusCreated, user, "Account created")
		return
	}
	responses.Success(c, http.StatusOK, user, "Signed in")
}
