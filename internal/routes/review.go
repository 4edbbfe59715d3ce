package routes

import (
	"github.com/gin-gonic/gin"

	"lumen-backend/internal/handlers"
	"lumen-backend/internal/middlewares"
	"lumen-backend/internal/models"
)

type ReviewRoutes struct {
	handler *handlers.ReviewHandler
	guards  Guards
}

func NewReviewRoutes(handler *handlers.ReviewHandler, guards Guards) *ReviewRoutes {
	return &ReviewRoutes{handler: handler, guards: guards}
}

func (r *ReviewRoutes) RegisterRoutes(router *gin.RouterGroup) {
	reviews := router.Group("/reviews")
	reviews.Use(r.guards.Authenticate)
	{
		reviews.POST("", middlewares.RequireRole(models.RoleClient), r.handler.Create)
		reviews.POST("/:review_id/response", middlewares.RequireRole(models.RoleReader), r.handler.Respond)
	}
}
