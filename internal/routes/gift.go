package routes

import (
	"github.com/gin-gonic/gin"

	"lumen-backend/internal/handlers"
	"lumen-backend/internal/middlewares"
	"lumen-backend/internal/models"
)

type GiftRoutes struct {
	handler *handlers.GiftHandler
	guards  Guards
}

func NewGiftRoutes(handler *handlers.GiftHandler, guards Guards) *GiftRoutes {
	return &GiftRoutes{handler: handler, guards: guards}
}

func (r *GiftRoutes) RegisterRoutes(router *gin.RouterGroup) {
	gifts := router.Group("/virtual-gifts")

	// Public
	gifts.GET("", r.handler.Catalog)
	gifts.GET("/leaderboard", r.handler.Leaderboard)

	member := gifts.Group("")
	member.Use(r.guards.Authenticate)
	{
		member.POST("/send", r.handler.Send)
		member.GET("/sent", r.handler.Sent)
		member.GET("/received", middlewares.RequireRole(models.RoleReader), r.handler.Received)
	}

	admin := gifts.Group("")
	admin.Use(r.guards.Authenticate, middlewares.RequireAdmin())
	{
		admin.GET("/admin", r.handler.AdminCatalog)
		admin.POST("", r.handler.Create)
		admin.PUT("/:gift_id", r.handler.Update)
		admin.PATCH("/:gift_id/active", r.handler.SetActive)
	}
}
