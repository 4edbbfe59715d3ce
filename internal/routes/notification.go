package routes

import (
	"github.com/gin-gonic/gin"

	"lumen-backend/internal/handlers"
)

type NotificationRoutes struct {
	handler *handlers.NotificationHandler
	guards  Guards
}

func NewNotificationRoutes(handler *handlers.NotificationHandler, guards Guards) *NotificationRoutes {
	return &NotificationRoutes{handler: handler, guards: guards}
}

func (r *NotificationRoutes) RegisterRoutes(router *gin.RouterGroup) {
	notifications := router.Group("/notifications")
	notifications.Use(r.guards.Authenticate)
	{
		notifications.GET("", r.handler.List)
		notifications.GET("/unread-count", r.handler.UnreadCount)
		notifications.POST("/read-all", r.handler.MarkAllRead)
		notifications.GET("/preferences", r.handler.Preferences)
		notifications.PUT("/preferences", r.handler.UpdatePreferences)
		notifications.POST("/:notification_id/read", r.handler.MarkRead)
		notifications.DELETE("/:notification_id", r.handler.Delete)
	}
}
