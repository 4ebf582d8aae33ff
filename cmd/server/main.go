// Package main runs the live song-request pipeline HTTP server with
// WebSocket fan-out and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/livejam/backend/config"
	"github.com/livejam/backend/internal/auth"
	"github.com/livejam/backend/internal/gifts"
	"github.com/livejam/backend/internal/middleware"
	"github.com/livejam/backend/internal/playqueue"
	"github.com/livejam/backend/internal/ratelimit"
	"github.com/livejam/backend/internal/rawevents"
	"github.com/livejam/backend/internal/realtime"
	"github.com/livejam/backend/internal/report"
	"github.com/livejam/backend/internal/requests"
	"github.com/livejam/backend/internal/sessions"
	"github.com/livejam/backend/internal/spotify"
	"github.com/livejam/backend/internal/tiktok"
	"github.com/livejam/backend/pkg/database"
	"github.com/livejam/backend/pkg/redis"
	"github.com/livejam/backend/pkg/response"
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

	// Redis is optional: without it the dashboard fan-out stays
	// process-local, which matches the single-instance deployment.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	var hub *realtime.Hub
	if rdb != nil {
		bridge := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, bridge, bridge)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Spotify catalog
	accounts := spotify.NewAccountStore(pool)
	tokenSource := spotify.NewTokenSource(accounts, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, logger)
	catalog := spotify.NewService(spotify.NewClient(logger), tokenSource)

	// Pipeline storage
	sessionRepo := sessions.NewRepository(pool)
	requestRepo := requests.NewRepository(pool)
	giftRepo := gifts.NewRepository(pool)
	rawRepo := rawevents.NewRepository(pool)

	// Per-viewer admission control
	limiter := ratelimit.New(ratelimit.DefaultMaxRequests, ratelimit.DefaultWindow)
	limiter.Start()

	// Live connection manager
	connector, err := tiktok.NewGoTikTokConnector(cfg.TikTok.SigningAPIKey, logger)
	if err != nil {
		logger.Fatal("tiktok connector", zap.Error(err))
	}
	manager := tiktok.NewManager(connector, requestRepo, giftRepo, sessionRepo,
		catalog, limiter, hub, rawRepo, logger)

	sessionHandler := sessions.NewHandler(sessionRepo, requestRepo, giftRepo,
		manager, accounts, authRepo, logger)

	queueRepo := playqueue.NewRepository(pool)
	queueHandler := playqueue.NewHandler(queueRepo, requestRepo, sessionRepo, catalog, logger)

	reportRepo := report.NewRepository(pool)
	reportHandler := report.NewHandler(reportRepo, sessionRepo)

	jwtValidate := func(token string) (string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.UserID.String(), nil
	}

	// Init snapshot for a freshly connected dashboard.
	initFn := func(ctx context.Context, userID uuid.UUID) (realtime.Event, error) {
		active, err := sessionRepo.ActiveForUser(ctx, userID)
		if err != nil {
			return realtime.Event{}, err
		}
		if active == nil {
			return realtime.Init(nil, nil, nil, nil), nil
		}
		queue, err := queueRepo.ListPending(ctx, active.ID)
		if err != nil {
			return realtime.Event{}, err
		}
		recent, err := requestRepo.ListBySession(ctx, active.ID, nil, 50)
		if err != nil {
			return realtime.Event{}, err
		}
		giftList, err := giftRepo.ListBySession(ctx, active.ID)
		if err != nil {
			return realtime.Event{}, err
		}
		return realtime.Init(active, queue, recent, giftList), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "active_connections": manager.ActiveCount()})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Dashboard WebSocket (token validated from query param)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate, initFn))

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/profile", authHandler.Profile)
		api.PATCH("/auth/profile", authHandler.UpdateProfile)

		api.POST("/session", sessionHandler.Start)
		api.DELETE("/session", sessionHandler.Stop)
		api.GET("/session", sessionHandler.Get)

		api.GET("/requests", sessionHandler.ListRequests)
		api.GET("/gifts", sessionHandler.ListGifts)

		api.GET("/queue", queueHandler.List)
		api.POST("/queue", queueHandler.Add)
		api.DELETE("/queue/:id", queueHandler.Skip)

		api.GET("/report", reportHandler.Get)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Re-attach sessions left active by a previous process.
	go manager.Recover(context.Background())

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Advise dashboards first, then finalize every session before the
	// listener closes.
	hub.NotifyShutdown()
	manager.StopAll()
	limiter.Stop()

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
