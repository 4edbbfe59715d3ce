package routes

import (
	"github.com/gin-gonic/gin"

	"lumen-backend/internal/handlers"
)

type AuthRoutes struct {
	handler *handlers.AuthHandler
}

func NewAuthRoutes(handler *handlers.AuthHandler) *AuthRoutes {
	return &AuthRoutes{handler: handler}
}

func (r *AuthRoutes) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		// The token is verified by the handler; no user exists yet.
		auth.POST("/session", r.handler.StartSession)
	}
}
