// Package main runs the meeting platform HTTP server with WebSocket signaling
// and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumen-meet/backend/config"
	"github.com/lumen-meet/backend/internal/analytics"
	"github.com/lumen-meet/backend/internal/auth"
	"github.com/lumen-meet/backend/internal/meetings"
	"github.com/lumen-meet/backend/internal/middleware"
	"github.com/lumen-meet/backend/internal/realtime"
	"github.com/lumen-meet/backend/pkg/database"
	"github.com/lumen-meet/backend/pkg/queue"
	"github.com/lumen-meet/backend/pkg/redis"
	"github.com/lumen-meet/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Meetings
	jobQueue := queue.NewQueue(rdb.Client, logger)
	meetingRepo := meetings.NewRepository(pool)
	meetingHandler := meetings.NewHandler(meetingRepo, jobQueue, logger)

	// Analytics
	analyticsRepo := analytics.NewRepository(pool)
	analyticsHandler := analytics.NewHandler(analyticsRepo, meetingRepo, logger)

	// Realtime: registry holds live room state, the hub fans events out to
	// local sockets and across instances via Redis, the controller applies
	// room semantics on top of both.
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	registry := realtime.NewRegistry(logger)
	controller := realtime.NewController(registry, hub, meetingRepo, meetingRepo, logger)

	jwtValidate := func(token string) (string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.UserID.String(), nil
	}

	originPolicy := middleware.NewOriginPolicy(cfg.Server.CORSAllowedOrigins)
	wsOpts := realtime.Options{
		PingInterval:   time.Duration(cfg.Realtime.PingIntervalSec) * time.Second,
		LivenessWindow: time.Duration(cfg.Realtime.LivenessWindowSec) * time.Second,
		CheckOrigin:    originPolicy.CheckOrigin,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(originPolicy.CORS())
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (for building invite lists)
		api.GET("/users", authHandler.List)
		api.GET("/users/me/engagement", analyticsHandler.GetUserEngagement)

		// Meetings
		api.GET("/meetings", meetingHandler.List)
		api.POST("/meetings", meetingHandler.Create)
		api.GET("/meetings/:id", meetingHandler.GetByID)
		api.PATCH("/meetings/:id", meetingHandler.Update)
		api.DELETE("/meetings/:id", meetingHandler.Delete)
		api.PUT("/meetings/:id/status", meetingHandler.UpdateStatus)
		api.POST("/meetings/:id/participants", meetingHandler.AddParticipant)
		api.GET("/meetings/:id/participants", meetingHandler.ListParticipants)
		api.GET("/meetings/:id/analytics", analyticsHandler.GetByMeeting)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, controller, logger, jwtValidate, wsOpts))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
