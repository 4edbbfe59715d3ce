package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/handlers"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth         *handlers.AuthHandler
	User         *handlers.UserHandler
	Reader       *handlers.ReaderHandler
	Availability *handlers.AvailabilityHandler
	Session      *handlers.SessionHandler
	Wallet       *handlers.WalletHandler
	Conversation *handlers.ConversationHandler
	Marketplace  *handlers.MarketplaceHandler
	Gift         *handlers.GiftHandler
	Review       *handlers.ReviewHandler
	Notification *handlers.NotificationHandler
	Support      *handlers.SupportHandler
	Analytics    *handlers.AnalyticsHandler
}

// Guards are the authentication middlewares shared by the route groups.
type Guards struct {
	Authenticate gin.HandlerFunc
	Optional     gin.HandlerFunc
}

func RegisterRoutes(router *gin.Engine, h Handlers, g Guards, socket http.HandlerFunc, health gin.HandlerFunc) {
	v1 := router.Group("/api/v1")

	NewAuthRoutes(h.Auth).RegisterRoutes(v1)
	NewUserRoutes(h.User, g).RegisterRoutes(v1)
	NewReaderRoutes(h.Reader, h.Availability, g).RegisterRoutes(v1)
	NewSessionRoutes(h.Session, g).RegisterRoutes(v1)
	NewWalletRoutes(h.Wallet, g).RegisterRoutes(v1)
	NewConversationRoutes(h.Conversation, g).RegisterRoutes(v1)
	NewMarketplaceRoutes(h.Marketplace, g).RegisterRoutes(v1)
	NewReviewRoutes(h.Review, g).RegisterRoutes(v1)
	NewSupportRoutes(h.Support, g).RegisterRoutes(v1)

	api := router.Group("/api")
	NewNotificationRoutes(h.Notification, g).RegisterRoutes(api)
	NewGiftRoutes(h.Gift, g).RegisterRoutes(api)
	NewAdminRoutes(h, g).RegisterRoutes(api)

	// The socket authenticates with its first frame, not a header.
	router.GET("/ws", gin.WrapF(socket))
	router.GET("/healthz", health)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}
