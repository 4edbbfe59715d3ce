package routes

import (
	"github.com/gin-gonic/gin"

	"lumen-backend/internal/middlewares"
)

// AdminRoutes mounts the back-office surface under /api/admin.
type AdminRoutes struct {
	h      Handlers
	guards Guards
}

func NewAdminRoutes(h Handlers, guards Guards) *AdminRoutes {
	return &AdminRoutes{h: h, guards: guards}
}

func (r *AdminRoutes) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/admin")
	admin.Use(r.guards.Authenticate, middlewares.RequireAdmin())

	users := admin.Group("/users")
	{
		users.GET("", r.h.User.ListUsers)
		users.GET("/:user_id", r.h.User.GetUser)
		users.PATCH("/:user_id", r.h.User.UpdateUser)
	}

	readers := admin.Group("/readers")
	{
		readers.GET("", r.h.Reader.AdminList)
		readers.POST("/:reader_id/approve", r.h.Reader.Approve)
		readers.POST("/:reader_id/suspend", r.h.Reader.Suspend)
		readers.POST("/:reader_id/reinstate", r.h.Reader.Reinstate)
	}

	analytics := admin.Group("/analytics")
	{
		analytics.GET("/overview", r.h.Analytics.Overview)
		analytics.GET("/revenue", r.h.Analytics.Revenue)
		analytics.GET("/top-readers", r.h.Analytics.TopReaders)
	}

	finance := admin.Group("/finance/transactions")
	{
		finance.GET("", r.h.Wallet.Transactions)
		finance.GET("/summary", r.h.Wallet.Summary)
		finance.GET("/:reference", r.h.Wallet.Transaction)
		finance.POST("/payouts", r.h.Wallet.Payout)
		finance.POST("/adjustments", r.h.Wallet.Adjust)
	}

	admin.GET("/reviews", r.h.Review.AdminList)
	admin.PATCH("/reviews/:review_id", r.h.Review.Moderate)

	admin.GET("/support/tickets", r.h.Support.AdminList)
	admin.PATCH("/support/tickets/:ticket_id", r.h.Support.Update)
	admin.POST("/support/tickets/:ticket_id/replies", r.h.Support.Reply)

	coupons := admin.Group("/coupons")
	{
		coupons.GET("", r.h.Marketplace.Coupons)
		coupons.POST("", r.h.Marketplace.CreateCoupon)
		coupons.PATCH("/:code/active", r.h.Marketplace.SetCouponActive)
	}
}
