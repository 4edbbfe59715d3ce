package routes

import (
	"github.com/gin-gonic/gin"

	"lumen-backend/internal/handlers"
	"lumen-backend/internal/middlewares"
	"lumen-backend/internal/models"
)

type SessionRoutes struct {
	handler *handlers.SessionHandler
	guards  Guards
}

func NewSessionRoutes(handler *handlers.SessionHandler, guards Guards) *SessionRoutes {
	return &SessionRoutes{handler: handler, guards: guards}
}

func (r *SessionRoutes) RegisterRoutes(router *gin.RouterGroup) {
	sessions := router.Group("/sessions")
	sessions.Use(r.guards.Authenticate)
	{
		sessions.POST("", middlewares.RequireRole(models.RoleClient), r.handler.Book)
		sessions.GET("", r.handler.List)
		sessions.GET("/:session_id", r.handler.Get)

		// Participant checks happen in the service.
		sessions.POST("/:session_id/confirm", r.handler.Confirm)
		sessions.POST("/:session_id/decline", r.handler.Decline)
		sessions.POST("/:session_id/start", r.handler.Start)
		sessions.POST("/:session_id/complete", r.handler.Complete)
		sessions.POST("/:session_id/cancel", r.handler.Cancel)
	}
}
