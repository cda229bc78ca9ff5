package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/timeweave/meeting-scheduler-api/api/swagger"
	"github.com/timeweave/meeting-scheduler-api/internal/handler"
	"github.com/timeweave/meeting-scheduler-api/internal/middleware"
	"github.com/timeweave/meeting-scheduler-api/internal/repository"
	"github.com/timeweave/meeting-scheduler-api/internal/router"
	"github.com/timeweave/meeting-scheduler-api/internal/service"
	"github.com/timeweave/meeting-scheduler-api/migrations"
	"github.com/timeweave/meeting-scheduler-api/pkg/cache"
	"github.com/timeweave/meeting-scheduler-api/pkg/config"
	"github.com/timeweave/meeting-scheduler-api/pkg/database"
	"github.com/timeweave/meeting-scheduler-api/pkg/jobs"
	"github.com/timeweave/meeting-scheduler-api/pkg/logger"
	corsmiddleware "github.com/timeweave/meeting-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/timeweave/meeting-scheduler-api/pkg/middleware/requestid"
)

// @title TimeWeave API
// @version 1.0.0
// @description Group meeting scheduling: collect busy intervals and rank mutually free slots.
// @BasePath /
// @schemes http https

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(ctx, db, logr); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Scheduler.CacheEnabled || cfg.Notifications.QueueBackend == "asynq" {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	metrics := service.NewMetricsService()
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Scheduler.CacheTTL, logr, cfg.Scheduler.CacheEnabled && cacheRepo != nil)

	meetingRepo := repository.NewMeetingRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	slotRepo := repository.NewSuggestedSlotRepository(db)

	notifications, shutdownQueue := buildNotifications(ctx, cfg, metrics, logr)
	defer shutdownQueue()

	validate := validator.New()
	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.Tokens.Secret,
		TTL:    cfg.Tokens.TTL,
		Issuer: cfg.Tokens.Issuer,
	})
	suggestionSvc := service.NewSuggestionService(meetingRepo, meetingRepo, participantRepo, slotRepo, db, cacheSvc, metrics, notifications, logr, service.SuggestionConfig{
		DefaultLimit:       cfg.Scheduler.SuggestionLimit,
		DefaultMinPct:      cfg.Scheduler.MinAvailabilityPct,
		RegenerateAttempts: cfg.Scheduler.RegenerateAttempts,
		RetryBackoff:       cfg.Scheduler.RetryBackoff,
		CacheTTL:           cfg.Scheduler.CacheTTL,
	})
	participantSvc := service.NewParticipantService(meetingRepo, participantRepo, db, tokens, notifications, suggestionSvc, validate, logr, cfg.PublicBaseURL)
	meetingSvc := service.NewMeetingService(meetingRepo, participantSvc, suggestionSvc, validate, logr, service.MeetingDefaults{
		Timezone:      cfg.Scheduler.DefaultTimezone,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	exportSvc := service.NewExportService(suggestionSvc, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	routes := &router.Router{
		Meetings:     handler.NewMeetingHandler(meetingSvc),
		Participants: handler.NewParticipantHandler(participantSvc),
		Suggestions:  handler.NewSuggestionHandler(suggestionSvc, exportSvc),
		Metrics:      handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)),
		RespondToken: middleware.RespondToken(tokens),
	}
	routes.Setup(r, cfg.APIPrefix)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildNotifications selects the sender and, when notifications are enabled, the queue backend.
// Disabled notifications are only logged.
func buildNotifications(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.NotificationService, func()) {
	nc := cfg.Notifications
	if !nc.Enabled {
		return service.NewNotificationService(service.NewLogSender(logr), metrics, logr, nc.SiteName), func() {}
	}

	var sender service.Sender = service.NewLogSender(logr)
	if nc.Sender == "http" {
		sender = service.NewHTTPSender(service.HTTPSenderConfig{
			Endpoint: nc.HTTPEndpoint,
			APIKey:   nc.APIKey,
			From:     nc.FromAddress,
		})
	}
	svc := service.NewNotificationService(sender, metrics, logr, nc.SiteName)

	if nc.QueueBackend == "asynq" {
		acfg := jobs.AsynqConfig{
			Addr:        cache.Addr(cfg.Redis),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			Queue:       "notifications",
			Concurrency: nc.Workers,
			MaxRetries:  nc.MaxRetries,
			Logger:      logr,
		}
		dispatcher := jobs.NewAsynqDispatcher(acfg)
		worker := jobs.NewAsynqWorker(acfg, svc.Handle, svc.JobTypes()...)
		if err := worker.Start(); err != nil {
			logr.Fatal("failed to start notification worker", zap.Error(err))
		}
		svc.UseDispatcher(dispatcher)
		return svc, func() {
			worker.Stop()
			_ = dispatcher.Close()
		}
	}

	queue := jobs.NewQueue("notifications", svc.Handle, jobs.QueueConfig{
		Workers:    nc.Workers,
		MaxRetries: nc.MaxRetries,
		RetryDelay: nc.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	svc.UseDispatcher(queue)
	return svc, queue.Stop
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}
