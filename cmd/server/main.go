package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/edublog/internal/config"
	"github.com/edublog/internal/db"
	"github.com/edublog/internal/handler"
	"github.com/edublog/internal/logger"
	"github.com/edublog/internal/middleware"
	"github.com/edublog/internal/router"
	"github.com/edublog/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	if err := db.SeedMailServers(db.DB, service.MailServerSeeds(cfg.Mail), time.Now().UTC()); err != nil {
		log.Error("failed to seed mail servers", "error", err)
		os.Exit(1)
	}

	limiter, redisClient := buildLimiter(cfg, log)

	mailLog := logger.WithFields(slog.String("component", "mail"))
	senders := map[string]service.Sender{
		"resend":   service.NewResendSender(cfg.Mail.ResendBaseURL, cfg.Mail.ResendAPIKey, mailLog),
		"mailtrap": service.NewMailtrapSender(cfg.Mail.MailtrapBaseURL, cfg.Mail.MailtrapAPIToken, mailLog),
	}
	api := handler.NewAPI(
		service.NewBlogService(db.DB, logger.WithFields(slog.String("component", "blog"))),
		service.NewMailService(db.DB, mailLog, cfg.Mail.FromAddress, senders),
		log,
	)

	r := router.SetupRouter(router.Dependencies{
		API:            api,
		DB:             db.DB,
		Limiter:        limiter,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("starting server", "addr", cfg.ListenAddr, "rate_limit_backend", limiter.Backend())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to run server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server exited")
}

// buildLimiter 优先使用 redis 做跨实例限流，连不上时退回进程内限流。
func buildLimiter(cfg config.AppConfig, log *slog.Logger) (middleware.Limiter, *redis.Client) {
	if cfg.RedisAddr == "" {
		return middleware.NewMemoryLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, falling back to in-memory rate limiting", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return middleware.NewMemoryLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow), nil
	}
	return middleware.NewRedisLimiter(client, cfg.RateLimitRequests, cfg.RateLimitWindow), client
}
