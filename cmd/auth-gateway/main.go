package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/auth-gateway/api/swagger"
	"github.com/noah-isme/auth-gateway/internal/handler"
	"github.com/noah-isme/auth-gateway/internal/identity"
	"github.com/noah-isme/auth-gateway/internal/middleware"
	"github.com/noah-isme/auth-gateway/internal/repository"
	"github.com/noah-isme/auth-gateway/internal/service"
	"github.com/noah-isme/auth-gateway/internal/token"
	"github.com/noah-isme/auth-gateway/pkg/cache"
	"github.com/noah-isme/auth-gateway/pkg/config"
	"github.com/noah-isme/auth-gateway/pkg/database"
	"github.com/noah-isme/auth-gateway/pkg/logger"
	corsmiddleware "github.com/noah-isme/auth-gateway/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/auth-gateway/pkg/middleware/requestid"
)

// @title Auth Gateway
// @version 1.0.0
// @description Exchanges Google ID tokens for locally issued session tokens
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// Profile caching is optional; a nil Redis client degrades to misses.
	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	verifier, err := identity.NewGoogleVerifier(context.Background(), cfg.Google, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init google verifier", "error", err)
	}

	codec := token.NewCodec(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	metricsService := service.NewMetricsService()
	userRepo := repository.NewUserRepository(db)

	sessions := service.NewSessionService(userRepo, verifier, codec, cacheRepo, metricsService, nil, logr, service.SessionConfig{
		ProfileCacheTTL: cfg.Cache.ProfileTTL,
	})

	authHandler := handler.NewAuthHandler(sessions, handler.AuthCookieConfig{
		MaxAge: cfg.JWT.RefreshTTL,
		Secure: cfg.Env == config.EnvProduction,
	})
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/google-login", authHandler.GoogleLogin)
	api.POST("/refresh", authHandler.Refresh)
	api.GET("/me", middleware.Auth(sessions), authHandler.Me)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
