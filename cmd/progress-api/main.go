package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-ilp-api/internal/handler"
	"github.com/noah-isme/sma-ilp-api/internal/notify"
	"github.com/noah-isme/sma-ilp-api/internal/repository"
	"github.com/noah-isme/sma-ilp-api/internal/scheduler"
	"github.com/noah-isme/sma-ilp-api/internal/service"
	"github.com/noah-isme/sma-ilp-api/pkg/cache"
	"github.com/noah-isme/sma-ilp-api/pkg/config"
	"github.com/noah-isme/sma-ilp-api/pkg/database"
	"github.com/noah-isme/sma-ilp-api/pkg/jobs"
	"github.com/noah-isme/sma-ilp-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-ilp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-ilp-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	kafkaPublisher := notify.NewKafkaPublisher(cfg.Kafka, logr)
	defer kafkaPublisher.Close() //nolint:errcheck

	dispatcher := notify.NewDispatcher(kafkaPublisher, jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: cfg.Notify.RetryDelay,
		Logger:     logr,
	})
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	windows, err := service.NewWindowCalculator(cfg.Assessment)
	if err != nil {
		logr.Sugar().Fatalw("invalid assessment configuration", "error", err)
	}

	metrics := service.NewMetricsService()
	progressRepo := repository.NewProgressRepository(db)
	accessibility := service.NewAccessibilityService(progressRepo, windows, dispatcher, metrics, logr)
	graceExpiry := service.NewGraceExpiryService(progressRepo, windows, dispatcher, metrics, logr)

	if cfg.Sweeper.Enabled {
		sweeper := scheduler.NewSweeper(accessibility, graceExpiry, redisClient, cfg.Sweeper, logr)
		go sweeper.Run(ctx)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group(cfg.APIPrefix)
	accessHandler := handler.NewAccessibilityHandler(accessibility, graceExpiry, windows, validator.New())
	accessHandler.Register(api)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		logr.Sugar().Infow("shutting down")
		_ = srv.Shutdown(context.Background())
	}()

	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
