// Package main runs the background job worker (email delivery, event reminders).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-community/backend/config"
	"github.com/aura-community/backend/internal/emaillogs"
	"github.com/aura-community/backend/internal/events"
	"github.com/aura-community/backend/internal/members"
	"github.com/aura-community/backend/internal/worker"
	"github.com/aura-community/backend/pkg/database"
	"github.com/aura-community/backend/pkg/mailer"
	"github.com/aura-community/backend/pkg/metrics"
	"github.com/aura-community/backend/pkg/queue"
	"github.com/aura-community/backend/pkg/redis"
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

	if cfg.Email.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set; email jobs will fail and be retried")
	}
	sender := mailer.NewSMTP(mailer.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUser,
		Password: cfg.Email.SMTPPass,
		From:     cfg.Email.FromAddress,
		FromName: cfg.Email.FromName,
	})

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(sender, emaillogs.NewRepository(pool), jobQueue, metrics.New(), logger)

	loc := cfg.Community.Location()
	calendar := events.NewService(events.NewRepository(pool), events.Options{
		Expander: events.NewExpander(cfg.Calendar.HorizonMonths, cfg.Calendar.MaxSteps).In(loc),
		Location: loc,
		Logger:   logger,
	})
	reminders := worker.NewReminderScheduler(calendar, members.NewRepository(pool), jobQueue, worker.NewRedisGuard(rdb.Client), worker.ReminderOptions{
		Lead:     cfg.Reminders.Lead,
		Interval: cfg.Reminders.Interval,
		Location: loc,
	}, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	if cfg.Reminders.Enabled {
		go reminders.Run(workerCtx)
	}
	logger.Info("worker started", zap.Bool("reminders", cfg.Reminders.Enabled))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
