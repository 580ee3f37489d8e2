// Package main runs the community HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-community/backend/config"
	"github.com/aura-community/backend/internal/audit"
	"github.com/aura-community/backend/internal/auth"
	"github.com/aura-community/backend/internal/classroom"
	"github.com/aura-community/backend/internal/emaillogs"
	"github.com/aura-community/backend/internal/events"
	"github.com/aura-community/backend/internal/feed"
	"github.com/aura-community/backend/internal/members"
	"github.com/aura-community/backend/internal/middleware"
	"github.com/aura-community/backend/internal/moderation"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/internal/points"
	"github.com/aura-community/backend/internal/realtime"
	"github.com/aura-community/backend/internal/search"
	"github.com/aura-community/backend/internal/settings"
	"github.com/aura-community/backend/pkg/cache"
	"github.com/aura-community/backend/pkg/database"
	"github.com/aura-community/backend/pkg/metrics"
	"github.com/aura-community/backend/pkg/queue"
	"github.com/aura-community/backend/pkg/redis"
	"github.com/aura-community/backend/pkg/response"
	"github.com/aura-community/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Uploads answer 503 when the bucket is not configured.
	var objects storage.ObjectStore
	if cfg.AWS.Enabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PublicBaseURL:        cfg.AWS.PublicBaseURL,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			objects = s3Client
		}
	}

	response.UseJSONFieldNames()
	loc := cfg.Community.Location()
	m := metrics.New()
	views := cache.NewViews(rdb.Client, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	defer redisPubSub.Close()
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	resolver := auth.NewSessionResolver(jwtService, authRepo)

	settingsRepo := settings.NewRepository(pool)
	settingsSvc := settings.NewService(settingsRepo, views, cfg.Cache.SettingsTTL)
	authHandler := auth.NewHandler(authRepo, jwtService, jobQueue, settingsSvc.CommunityName(cfg.Community.Name), logger)

	pointsRepo := points.NewRepository(pool)
	announcer := points.NewAnnouncer(hub, jobQueue, authRepo, logger)
	ledger := points.NewLedger(pointsRepo, announcer, m, logger)
	leaderboards := points.NewLeaderboards(pointsRepo, views, cfg.Cache.LeaderboardTTL, loc)
	pointsHandler := points.NewHandler(leaderboards, pointsRepo, logger)

	moderationSvc := moderation.NewService(moderation.NewRepository(pool), views, m, logger)
	moderationHandler := moderation.NewHandler(moderationSvc, logger)
	settingsHandler := settings.NewHandler(settingsSvc, moderationSvc, objects, logger)

	feedSvc := feed.NewService(feed.NewRepository(pool), moderationSvc, ledger, hub, views, logger)
	feedHandler := feed.NewHandler(feedSvc, objects, logger)

	eventSvc := events.NewService(events.NewRepository(pool), events.Options{
		Expander: events.NewExpander(cfg.Calendar.HorizonMonths, cfg.Calendar.MaxSteps).In(loc),
		Views:    views,
		CacheTTL: cfg.Cache.CalendarTTL,
		Hub:      hub,
		Points:   ledger,
		Metrics:  m,
		Location: loc,
		Logger:   logger,
	})
	eventHandler := events.NewHandler(eventSvc, loc, logger)

	memberSvc := members.NewService(members.NewRepository(pool), pointsRepo, views, cfg.Cache.MembersTTL, logger)
	memberHandler := members.NewHandler(memberSvc, objects, logger)

	classroomSvc := classroom.NewService(classroom.NewRepository(pool), ledger, m, logger)
	classroomHandler := classroom.NewHandler(classroomSvc, logger)

	searchHandler := search.NewHandler(search.NewRepository(pool), logger)
	auditHandler := audit.NewHandler(audit.NewRepository(pool), logger)
	emailLogsHandler := emaillogs.NewHandler(emaillogs.NewRepository(pool), logger)

	wsAuth := func(c *gin.Context, token string) (realtime.Identity, error) {
		s, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			return realtime.Identity{}, err
		}
		return realtime.Identity{UserID: s.UserID, Role: s.Role.String()}, nil
	}

	router := gin.New()
	router.Use(requestid.New())
	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())
	router.Use(m.Middleware())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Locale(middleware.ParseLocales(append([]string{cfg.Community.DefaultLocale}, cfg.Community.SupportedLocales...))))

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			logger.Warn("health: database", zap.Error(err))
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Check(c.Request.Context()); err != nil {
			logger.Warn("health: redis", zap.Error(err))
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok", "online": hub.OnlineCount()})
	})
	router.GET("/metrics", m.Handler())

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	api := router.Group("")
	api.Use(middleware.Auth(resolver, logger))
	{
		api.GET("/auth/me", authHandler.Me)
		api.PUT("/auth/password", authHandler.ChangePassword)

		api.GET("/settings", settingsHandler.Get)

		api.GET("/members", memberHandler.List)
		api.GET("/members/me", memberHandler.Me)
		api.PATCH("/members/me", memberHandler.UpdateMe)
		api.POST("/members/me/avatar", memberHandler.UploadAvatar)
		api.GET("/members/:id", memberHandler.Get)

		api.GET("/posts", feedHandler.ListPosts)
		api.POST("/posts", feedHandler.CreatePost)
		api.GET("/posts/:id", feedHandler.GetPost)
		api.PUT("/posts/:id", feedHandler.UpdatePost)
		api.DELETE("/posts/:id", feedHandler.DeletePost)
		api.POST("/posts/:id/pin", feedHandler.Pin)
		api.DELETE("/posts/:id/pin", feedHandler.Unpin)
		api.POST("/posts/:id/attachment", feedHandler.UploadAttachment)
		api.POST("/posts/:id/like", feedHandler.LikePost)
		api.DELETE("/posts/:id/like", feedHandler.UnlikePost)
		api.GET("/posts/:id/comments", feedHandler.ListComments)
		api.POST("/posts/:id/comments", feedHandler.CreateComment)
		api.PUT("/comments/:id", feedHandler.UpdateComment)
		api.DELETE("/comments/:id", feedHandler.DeleteComment)
		api.POST("/comments/:id/like", feedHandler.LikeComment)
		api.DELETE("/comments/:id/like", feedHandler.UnlikeComment)

		api.GET("/events", eventHandler.Month)
		api.GET("/events/occurrences", eventHandler.Occurrences)
		api.GET("/events/upcoming", eventHandler.Upcoming)
		api.GET("/events/:id", eventHandler.Get)
		api.POST("/events", middleware.RequireCapability(permissions.CanEditSettings), eventHandler.Create)
		api.PUT("/events/:id", middleware.RequireCapability(permissions.CanEditSettings), eventHandler.Update)
		api.DELETE("/events/:id", middleware.RequireCapability(permissions.CanEditSettings), eventHandler.Delete)

		api.GET("/leaderboard", pointsHandler.Leaderboard)
		api.GET("/points/history", pointsHandler.History)
		api.GET("/levels", pointsHandler.Levels)

		api.GET("/courses", classroomHandler.ListCourses)
		api.GET("/courses/:id", classroomHandler.GetCourse)
		api.POST("/courses/:id/enroll", classroomHandler.Enroll)
		api.GET("/courses/:id/progress", classroomHandler.Progress)
		api.GET("/lessons/:id", classroomHandler.GetLesson)
		api.POST("/lessons/:id/complete", classroomHandler.CompleteLesson)
		api.DELETE("/lessons/:id/complete", classroomHandler.UncompleteLesson)

		api.GET("/search", searchHandler.Search)
	}

	// Services re-check the finer rules (role ranks, owner protection).
	admin := api.Group("/admin")
	admin.Use(middleware.RequireRole(permissions.RoleModerator))
	{
		admin.POST("/members/:id/ban", moderationHandler.Ban)
		admin.DELETE("/members/:id/ban", moderationHandler.Unban)
		admin.PUT("/members/:id/role", moderationHandler.ChangeRole)

		settingsAdmin := admin.Group("")
		settingsAdmin.Use(middleware.RequireCapability(permissions.CanEditSettings))
		settingsAdmin.PATCH("/settings", settingsHandler.Update)
		settingsAdmin.POST("/settings/logo", settingsHandler.UploadLogo)
		settingsAdmin.GET("/audit-logs", auditHandler.List)
		settingsAdmin.GET("/email-logs", emailLogsHandler.List)

		settingsAdmin.POST("/courses", classroomHandler.CreateCourse)
		settingsAdmin.PUT("/courses/:id", classroomHandler.UpdateCourse)
		settingsAdmin.DELETE("/courses/:id", classroomHandler.DeleteCourse)
		settingsAdmin.POST("/courses/:id/modules", classroomHandler.CreateModule)
		settingsAdmin.PUT("/courses/:id/modules/order", classroomHandler.ReorderModules)
		settingsAdmin.PUT("/modules/:id", classroomHandler.RenameModule)
		settingsAdmin.DELETE("/modules/:id", classroomHandler.DeleteModule)
		settingsAdmin.POST("/modules/:id/lessons", classroomHandler.CreateLesson)
		settingsAdmin.PUT("/modules/:id/lessons/order", classroomHandler.ReorderLessons)
		settingsAdmin.PUT("/lessons/:id", classroomHandler.UpdateLesson)
		settingsAdmin.DELETE("/lessons/:id", classroomHandler.DeleteLesson)
	}

	router.GET("/ws", realtime.ServeWs(hub, logger, wsAuth, middleware.ParseOrigins(cfg.Server.CORSAllowedOrigins)))

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
