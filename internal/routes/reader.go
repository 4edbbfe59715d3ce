package routes

import (
	"github.com/gin-gonic/gin"

	"lumen-backend/internal/handlers"
	"lumen-backend/internal/middlewares"
	"lumen-backend/internal/models"
)

type ReaderRoutes struct {
	readerHandler       *handlers.ReaderHandler
	availabilityHandler *handlers.AvailabilityHandler
	guards              Guards
}

func NewReaderRoutes(readerHandler *handlers.ReaderHandler, availabilityHandler *handlers.AvailabilityHandler, guards Guards) *ReaderRoutes {
	return &ReaderRoutes{
		readerHandler:       readerHandler,
		availabilityHandler: availabilityHandler,
		guards:              guards,
	}
}

func (r *ReaderRoutes) RegisterRoutes(router *gin.RouterGroup) {
	readers := router.Group("/readers")

	// Public directory
	readers.GET("", r.readerHandler.Browse)
	readers.GET("/:reader_id", r.guards.Optional, r.readerHandler.Get)
	readers.GET("/:reader_id/slots", r.availabilityHandler.Slots)
	readers.GET("/:reader_id/reviews", r.readerHandler.Reviews)

	readers.POST("/apply", r.guards.Authenticate, middlewares.RequireRole(models.RoleClient), r.readerHandler.Apply)

	me := readers.Group("/me")
	me.Use(r.guards.Authenticate, middlewares.RequireRole(models.RoleReader))
	{
		me.GET("", r.readerHandler.GetMe)
		me.PATCH("", r.readerHandler.UpdateMe)
		me.PUT("/status", r.readerHandler.SetStatus)

		me.GET("/availability", r.availabilityHandler.GetRules)
		me.PUT("/availability", r.availabilityHandler.ReplaceRules)
		me.GET("/availability/exceptions", r.availabilityHandler.ListExceptions)
		me.POST("/availability/exceptions", r.availabilityHandler.AddException)
		me.DELETE("/availability/exceptions/:exception_id", r.availabilityHandler.DeleteException)
	}
}
