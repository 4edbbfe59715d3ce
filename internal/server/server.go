package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lumen-backend/internal/auth"
	"lumen-backend/internal/config"
	"lumen-backend/internal/database"
	"lumen-backend/internal/events"
	"lumen-backend/internal/handlers"
	"lumen-backend/internal/middlewares"
	"lumen-backend/internal/repositories"
	"lumen-backend/internal/routes"
	"lumen-backend/internal/services"
	"lumen-backend/internal/storage"
	"lumen-backend/internal/ws"
)

type Server struct {
	HTTP *http.Server
	Hub  *ws.Hub

	pool     *pgxpool.Pool
	rdb      *redis.Client
	closeBus func()
	log      *zap.Logger
}

// New connects every backing service, wires the dependency graph and builds
// the HTTP server. Call Close once the server has shut down.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	pool, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	rdb, err := database.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	publisher, closeBus, err := events.NewPublisher(ctx, cfg.RabbitMQ, log)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, err
	}

	files, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		closeBus()
		return nil, err
	}

	verifier, err := auth.NewVerifier(cfg.Firebase)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		closeBus()
		return nil, err
	}

	s := &Server{
		pool:     pool,
		rdb:      rdb,
		closeBus: closeBus,
		log:      log,
	}

	// Repositories
	userRepo := repositories.NewUserRepository(pool)
	readerRepo := repositories.NewReaderRepository(pool)
	availabilityRepo := repositories.NewAvailabilityRepository(pool)
	sessionRepo := repositories.NewSessionRepository(pool)
	walletRepo := repositories.NewWalletRepository(pool)
	conversationRepo := repositories.NewConversationRepository(pool)
	productRepo := repositories.NewProductRepository(pool)
	marketRepo := repositories.NewMarketplaceRepository(pool)
	giftRepo := repositories.NewGiftRepository(pool)
	reviewRepo := repositories.NewReviewRepository(pool)
	notificationRepo := repositories.NewNotificationRepository(pool)
	supportRepo := repositories.NewSupportRepository(pool)
	analyticsRepo := repositories.NewAnalyticsRepository(pool)
	redisRepo := repositories.NewRedisRepository(rdb)

	// Services
	authService := services.NewAuthService(verifier, userRepo, log)
	hub := ws.NewHub(authService.SocketAuth, cfg.Server.AllowedOrigins, log)
	s.Hub = hub

	notificationService := services.NewNotificationService(notificationRepo, redisRepo, hub, log)
	userService := services.NewUserService(userRepo, notificationService, log)
	readerService := services.NewReaderService(readerRepo, userRepo, notificationService, publisher, log)
	availabilityService := services.NewAvailabilityService(availabilityRepo, readerRepo, sessionRepo, cfg.Marketplace)
	bookingService := services.NewBookingService(sessionRepo, readerRepo, availabilityService,
		notificationService, publisher, cfg.Marketplace, log)
	bookingService.SetPusher(hub)
	walletService := services.NewWalletService(walletRepo, userRepo, notificationService, log)
	messagingService := services.NewMessagingService(conversationRepo, readerRepo, notificationService, log)
	messagingService.SetPusher(hub)
	marketplaceService := services.NewMarketplaceService(productRepo, marketRepo, readerRepo, files,
		notificationService, publisher, cfg.Marketplace, cfg.Storage, log)
	giftService := services.NewGiftService(giftRepo, readerRepo, redisRepo, notificationService, publisher,
		cfg.Marketplace, log)
	reviewService := services.NewReviewService(reviewRepo, sessionRepo, notificationService, publisher, log)
	supportService := services.NewSupportService(supportRepo, userRepo, notificationService, publisher, log)
	analyticsService := services.NewAnalyticsService(analyticsRepo)

	hub.SetMessageHandler(func(ctx context.Context, c *ws.Client, msgType string, data json.RawMessage) error {
		return messagingService.HandleFrame(ctx, c.UserID, msgType, data)
	})

	// Handlers
	h := routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		User:         handlers.NewUserHandler(userService),
		Reader:       handlers.NewReaderHandler(readerService, reviewService),
		Availability: handlers.NewAvailabilityHandler(availabilityService),
		Session:      handlers.NewSessionHandler(bookingService),
		Wallet:       handlers.NewWalletHandler(walletService),
		Conversation: handlers.NewConversationHandler(messagingService),
		Marketplace:  handlers.NewMarketplaceHandler(marketplaceService, cfg.Storage.MaxUploadBytes),
		Gift:         handlers.NewGiftHandler(giftService),
		Review:       handlers.NewReviewHandler(reviewService),
		Notification: handlers.NewNotificationHandler(notificationService),
		Support:      handlers.NewSupportHandler(supportService),
		Analytics:    handlers.NewAnalyticsHandler(analyticsService),
	}
	guards := routes.Guards{
		Authenticate: middlewares.Authenticate(authService),
		Optional:     middlewares.OptionalAuthenticate(authService),
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middlewares.RequestLogger(log))
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	routes.RegisterRoutes(router, h, guards, hub.ServeWS, s.health)

	s.HTTP = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	c.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	c.MaxAge = 12 * time.Hour
	return c
}

// health pings Postgres and Redis.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"database": "ok", "redis": "ok", "connections": s.Hub.ConnectedCount()}
	code := http.StatusOK
	if err := s.pool.Ping(ctx); err != nil {
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		status["redis"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// Close releases the broker, Redis and Postgres connections.
func (s *Server) Close() {
	s.closeBus()
	if err := s.rdb.Close(); err != nil {
		s.log.Warn("redis close", zap.Error(err))
	}
	s.pool.Close()
}
