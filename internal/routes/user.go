package routes

import (
	"github.com/gin-gonic/gin"

	"lumen-backend/internal/handlers"
)

type UserRoutes struct {
	userHandler *handlers.UserHandler
	guards      Guards
}

func NewUserRoutes(userHandler *handlers.UserHandler, guards Guards) *UserRoutes {
	return &UserRoutes{
		userHandler: userHandler,
		guards:      guards,
	}
}

func (r *UserRoutes) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	users.Use(r.guards.Authenticate)
	{
		users.GET("/me", r.userHandler.GetMe)
		users.PATCH("/me", r.userHandler.UpdateMe)
		users.DELETE("/me", r.userHandler.DeleteMe)
	}
}
