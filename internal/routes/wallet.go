package routes

import (
	"github.com/gin-gonic/gin"

	"lumen-backend/internal/handlers"
)

type WalletRoutes struct {
	handler *handlers.WalletHandler
	guards  Guards
}

func NewWalletRoutes(handler *handlers.WalletHandler, guards Guards) *WalletRoutes {
	return &WalletRoutes{handler: handler, guards: guards}
}

func (r *WalletRoutes) RegisterRoutes(router *gin.RouterGroup) {
	wallet := router.Group("/wallet")
	wallet.Use(r.guards.Authenticate)
	{
		wallet.GET("", r.handler.Wallet)
		wallet.POST("/deposits", r.handler.Deposit)
	}
}
