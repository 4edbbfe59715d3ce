package routes

import (
	"github.com/gin-gonic/gin"

	"lumen-backend/internal/handlers"
	"lumen-backend/internal/middlewares"
	"lumen-backend/internal/models"
)

type MarketplaceRoutes struct {
	handler *handlers.MarketplaceHandler
	guards  Guards
}

func NewMarketplaceRoutes(handler *handlers.MarketplaceHandler, guards Guards) *MarketplaceRoutes {
	return &MarketplaceRoutes{handler: handler, guards: guards}
}

func (r *MarketplaceRoutes) RegisterRoutes(router *gin.RouterGroup) {
	products := router.Group("/products")
	products.GET("", r.handler.Browse)
	products.GET("/:product_id", r.guards.Optional, r.handler.Get)
	products.GET("/:product_id/download", r.guards.Authenticate, r.handler.Download)

	owned := products.Group("")
	owned.Use(r.guards.Authenticate, middlewares.RequireRole(models.RoleReader))
	{
		owned.GET("/mine", r.handler.Mine)
		owned.POST("", r.handler.Create)
		owned.PATCH("/:product_id", r.handler.Update)
		owned.DELETE("/:product_id", r.handler.Archive)
		owned.PUT("/:product_id/file", r.handler.Upload)
	}

	cart := router.Group("/cart")
	cart.Use(r.guards.Authenticate)
	{
		cart.GET("", r.handler.Cart)
		cart.PUT("/items/:product_id", r.handler.SetItem)
		cart.DELETE("/items/:product_id", r.handler.RemoveItem)
		cart.POST("/coupon", r.handler.ApplyCoupon)
		cart.POST("/checkout", r.handler.Checkout)
	}

	router.GET("/orders", r.guards.Authenticate, r.handler.Orders)
}
