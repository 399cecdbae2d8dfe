package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/chatrelay/relay/internal/config"
	"github.com/chatrelay/relay/internal/gateway"
	"github.com/chatrelay/relay/internal/handler"
	"github.com/chatrelay/relay/internal/middleware"
	"github.com/chatrelay/relay/internal/ratelimit"
	"github.com/chatrelay/relay/internal/repository"
	"github.com/chatrelay/relay/internal/service"
	"github.com/chatrelay/relay/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	redis    *storage.RedisClient
	postgres *storage.Postgres

	limiter *ratelimit.Limiter

	authService *service.AuthService

	messageHandler      *handler.MessageHandler
	apiKeyHandler       *handler.APIKeyHandler
	organizationHandler *handler.OrganizationHandler
	contactHandler      *handler.ContactHandler
	identityHandler     *handler.IdentityHandler

	httpServer *http.Server
}

func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	orgRepo := repository.NewOrganizationRepository(postgres)
	apiKeyRepo := repository.NewAPIKeyRepository(postgres)
	messageRepo := repository.NewMessageRepository(postgres)
	contactRepo := repository.NewContactRepository(postgres)

	windowStore := ratelimit.NewRedisWindowStore(redis, cfg.Limits.StoreTimeout)
	tierResolver := ratelimit.NewCachedTierResolver(orgRepo, cfg.Limits.TierCacheTTL)
	limiter := ratelimit.NewLimiter(windowStore, tierResolver)

	gatewayClient := gateway.NewClient(cfg.Gateway.Address, cfg.Gateway.Password, cfg.Gateway.Timeout)

	apiKeyService := service.NewAPIKeyService(apiKeyRepo, redis)
	authService := service.NewAuthService(apiKeyService, cfg.Auth.JWTSecret)
	messageService := service.NewMessageService(messageRepo, gatewayClient)
	organizationService := service.NewOrganizationService(orgRepo)

	s := &Server{
		router:              router,
		config:              cfg,
		redis:               redis,
		postgres:            postgres,
		limiter:             limiter,
		authService:         authService,
		messageHandler:      handler.NewMessageHandler(messageService, limiter),
		apiKeyHandler:       handler.NewAPIKeyHandler(apiKeyService),
		organizationHandler: handler.NewOrganizationHandler(organizationService),
		contactHandler:      handler.NewContactHandler(contactRepo),
		identityHandler:     handler.NewIdentityHandler(cfg.Auth.IdentitySecret),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS([]string{
		"http://localhost:3000",
		"https://chatrelay.dev",
	}))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := s.router.Group("/", middleware.RequireAuth(s.authService))
	{
		authed.GET("/organizations", s.organizationHandler.List)
		authed.POST("/organizations", s.organizationHandler.Create)
		authed.DELETE("/organizations/:id", s.organizationHandler.Delete)
		authed.GET("/identity", s.identityHandler.Get)

		org := authed.Group("/", middleware.RequireOrganization())
		{
			org.POST("/messages", middleware.Admission(s.limiter), s.messageHandler.Send)
			org.GET("/messages", s.messageHandler.List)
			org.GET("/messages/limits", s.messageHandler.GetLimits)
			org.GET("/messages/:id", s.messageHandler.Get)

			org.GET("/contacts", s.contactHandler.List)

			org.POST("/api-keys", s.apiKeyHandler.Create)
			org.GET("/api-keys", s.apiKeyHandler.List)
			org.DELETE("/api-keys/:id", s.apiKeyHandler.Revoke)
		}
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if err := s.redis.Ping(c.Request.Context()); err != nil {
		redisHealthy = false
		log.Printf("Redis health check failed: %v", err)
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "relay",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting relay API on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
