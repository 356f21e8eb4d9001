package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/irshad-lms-api/api/swagger"
	"github.com/noah-isme/irshad-lms-api/internal/handler"
	"github.com/noah-isme/irshad-lms-api/internal/middleware"
	"github.com/noah-isme/irshad-lms-api/internal/ratelimit"
	"github.com/noah-isme/irshad-lms-api/internal/repository"
	"github.com/noah-isme/irshad-lms-api/internal/service"
	"github.com/noah-isme/irshad-lms-api/pkg/cache"
	"github.com/noah-isme/irshad-lms-api/pkg/config"
	"github.com/noah-isme/irshad-lms-api/pkg/database"
	"github.com/noah-isme/irshad-lms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/irshad-lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/irshad-lms-api/pkg/middleware/requestid"
	"github.com/noah-isme/irshad-lms-api/pkg/webhook"
)

// @title Irshad LMS API
// @version 1.0.0
// @description Learning management API for guided religious education
// @BasePath /api/v1
// @schemes http https
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()
	metricsService := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	pathRepo := repository.NewPathRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	roleRequestRepo := repository.NewRoleRequestRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Outbound webhooks run on a background queue; failures never surface to
	// the triggering request.
	dispatcher := service.NewWebhookDispatcher(
		webhook.New(cfg.Webhook.Secret, cfg.Webhook.Timeout),
		service.WebhookDispatcherConfig{
			RequestURL:    cfg.Webhook.RequestURL,
			EnrollmentURL: cfg.Webhook.EnrollmentURL,
			Workers:       cfg.Webhook.Workers,
			Logger:        logr,
		},
	)

	limiter := ratelimit.New()

	// Services.
	authService := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "irshad-lms",
	})
	activeRoleService := service.NewActiveRoleService(userRepo, logr)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, logr)
	catalogCache := service.NewCacheService(cacheRepo, metricsService, cfg.Catalog.CacheTTL, logr, true)
	pathService := service.NewPathService(pathRepo, catalogCache, auditRepo, notificationService, validate, logr, cfg.Catalog.CacheTTL)
	sessionService := service.NewSessionService(sessionRepo, pathRepo, userRepo, enrollmentRepo, auditRepo, notificationService, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, pathRepo, userRepo, limiter, service.EnrollmentLimits{
		Max:    cfg.RateLimits.EnrollmentMax,
		Window: cfg.RateLimits.EnrollmentWindow,
	}, dispatcher, notificationService, auditRepo, validate, logr)
	requestService := service.NewRequestService(requestRepo, limiter, service.RequestLimits{
		GuidanceMax:    cfg.RateLimits.GuidanceMax,
		GuidanceWindow: cfg.RateLimits.GuidanceWindow,
		BayatMax:       cfg.RateLimits.BayatMax,
		BayatWindow:    cfg.RateLimits.BayatWindow,
	}, dispatcher, notificationService, auditRepo, validate, logr)
	questionService := service.NewQuestionService(questionRepo, pathRepo, enrollmentRepo, userRepo, notificationService, auditRepo, validate, logr)
	announcementService := service.NewAnnouncementService(announcementRepo, notificationService, auditRepo, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, sessionRepo, userRepo, auditRepo, validate, logr)
	roleService := service.NewRoleService(roleRequestRepo, userRepo, notificationService, auditRepo, validate, logr)
	exportService := service.NewExportService(enrollmentRepo, attendanceRepo, pathRepo, userRepo, cfg.Exports.Enabled, cfg.Exports.MaxRows, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService, activeRoleService)
	activeRoleHandler := handler.NewActiveRoleHandler(activeRoleService, cfg.Env == config.EnvProduction)
	pathHandler := handler.NewPathHandler(pathService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	requestHandler := handler.NewRequestHandler(requestService)
	questionHandler := handler.NewQuestionHandler(questionService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	announcementHandler := handler.NewAnnouncementHandler(announcementService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	roleHandler := handler.NewRoleHandler(roleService)
	exportHandler := handler.NewExportHandler(exportService)
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

	registerRoutes(r, cfg, routeDeps{
		authService: authService,
		userRepo:    userRepo,
		auditRepo:   auditRepo,

		auth:          authHandler,
		activeRole:    activeRoleHandler,
		paths:         pathHandler,
		sessions:      sessionHandler,
		enrollments:   enrollmentHandler,
		requests:      requestHandler,
		questions:     questionHandler,
		notifications: notificationHandler,
		announcements: announcementHandler,
		attendance:    attendanceHandler,
		roles:         roleHandler,
		exports:       exportHandler,
		metrics:       metricsHandler,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
