package routes

import (
	"github.com/gin-gonic/gin"

	"lumen-backend/internal/handlers"
)

type ConversationRoutes struct {
	handler *handlers.ConversationHandler
	guards  Guards
}

func NewConversationRoutes(handler *handlers.ConversationHandler, guards Guards) *ConversationRoutes {
	return &ConversationRoutes{handler: handler, guards: guards}
}

func (r *ConversationRoutes) RegisterRoutes(router *gin.RouterGroup) {
	conversations := router.Group("/conversations")
	conversations.Use(r.guards.Authenticate)
	{
		conversations.POST("", r.handler.Open)
		conversations.GET("", r.handler.List)
		conversations.GET("/:conversation_id/messages", r.handler.Messages)
		conversations.POST("/:conversation_id/messages", r.handler.Send)
		conversations.POST("/:conversation_id/read", r.handler.MarkRead)
	}
}
