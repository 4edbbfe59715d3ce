package routes

import (
	"github.com/gin-gonic/gin"

	"lumen-backend/internal/handlers"
)

type SupportRoutes struct {
	handler *handlers.SupportHandler
	guards  Guards
}

func NewSupportRoutes(handler *handlers.SupportHandler, guards Guards) *SupportRoutes {
	return &SupportRoutes{handler: handler, guards: guards}
}

func (r *SupportRoutes) RegisterRoutes(router *gin.RouterGroup) {
	tickets := router.Group("/support/tickets")
	tickets.Use(r.guards.Authenticate)
	{
		tickets.POST("", r.handler.Create)
		tickets.GET("", r.handler.Mine)
		tickets.GET("/:ticket_id", r.handler.Get)
		tickets.POST("/:ticket_id/replies", r.handler.Reply)
	}
}
