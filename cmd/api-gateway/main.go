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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/student-record-api/api/swagger"
	"github.com/noah-isme/student-record-api/internal/handler"
	"github.com/noah-isme/student-record-api/internal/repository"
	"github.com/noah-isme/student-record-api/internal/router"
	"github.com/noah-isme/student-record-api/internal/service"
	"github.com/noah-isme/student-record-api/pkg/cache"
	"github.com/noah-isme/student-record-api/pkg/config"
	"github.com/noah-isme/student-record-api/pkg/database"
	"github.com/noah-isme/student-record-api/pkg/jobs"
	"github.com/noah-isme/student-record-api/pkg/logger"
	"github.com/noah-isme/student-record-api/pkg/mailer"
	"github.com/noah-isme/student-record-api/pkg/reporter"
	"github.com/noah-isme/student-record-api/pkg/validation"
)

// @title Student Record API
// @version 1.0.0
// @description Courses, curricula, students and exam results.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	rep := reporter.New(cfg)
	defer rep.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	validate := validation.New()

	probes := map[string]handler.Pinger{}
	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
	} else {
		redisRepo := repository.NewCacheRepository(redisClient, logr)
		defer redisRepo.Close() //nolint:errcheck
		cacheRepo = redisRepo
		probes["redis"] = redisRepo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	examRepo := repository.NewExamRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	probes["postgres"] = dashboardRepo

	sender, err := mailer.New(cfg.Mail, logr)
	if err != nil {
		logr.Fatal("failed to configure mailer", zap.Error(err))
	}
	notifier, closeDispatcher := newNotifier(ctx, cfg, sender, metricsSvc, logr)
	defer closeDispatcher()

	authSvc := service.NewAuthService(service.AuthServiceParams{
		Users:     userRepo,
		Courses:   courseRepo,
		Audit:     auditRepo,
		Notifier:  notifier,
		Cache:     cacheSvc,
		Validator: validate,
		Logger:    logr,
		Config: service.AuthConfig{
			Secret:        cfg.JWT.Secret,
			TokenExpiry:   cfg.JWT.Expiration,
			Issuer:        cfg.JWT.Issuer,
			ResetTokenTTL: cfg.JWT.ResetTokenTTL,
		},
	})
	courseSvc := service.NewCourseService(courseRepo, cacheSvc, validate, logr)
	studentSvc := service.NewStudentService(userRepo, courseRepo, cacheSvc, validate, logr)
	examSvc := service.NewExamService(service.ExamServiceParams{
		Results:    examRepo,
		Users:      userRepo,
		Courses:    courseRepo,
		Cache:      cacheSvc,
		Metrics:    metricsSvc,
		Validator:  validate,
		Logger:     logr,
		MaxRetries: cfg.Exams.MaxRetries,
	})
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Repo:    dashboardRepo,
		Cache:   cacheSvc,
		Metrics: metricsSvc,
		Logger:  logr,
		Config:  service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	reportSvc := service.NewReportService(examSvc, userRepo, logr, nil, nil)

	r := router.New(router.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Course:    handler.NewCourseHandler(courseSvc),
		Student:   handler.NewStudentHandler(studentSvc),
		Exam:      handler.NewExamHandler(examSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc),
		Report:    handler.NewReportHandler(reportSvc),
		Metrics:   handler.NewMetricsHandler(metricsSvc, probes),
	}, router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Authenticator:  authSvc,
		Audit:          auditRepo,
		Metrics:        metricsSvc,
		Reporter:       rep,
		Logger:         logr,
	})

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newNotifier wires the password-reset mail path. The memory driver runs the
// workers in-process, the redis driver hands jobs to cmd/mail-worker.
func newNotifier(ctx context.Context, cfg *config.Config, sender mailer.Sender, metrics *service.MetricsService, logr *zap.Logger) (*service.NotificationService, func()) {
	if cfg.Mail.QueueDriver == "redis" {
		dispatcher := jobs.NewAsynqDispatcher(jobs.RedisOpt(cfg.Redis), service.MailQueue, cfg.Mail.Retries)
		notifier := service.NewNotificationService(dispatcher, nil, metrics, logr, cfg.FrontendURL)
		return notifier, func() {
			if err := dispatcher.Close(); err != nil {
				logr.Warn("failed to close mail dispatcher", zap.Error(err))
			}
		}
	}

	var notifier *service.NotificationService
	queue := jobs.NewQueue(service.MailQueue, func(ctx context.Context, job jobs.Job) error {
		return notifier.HandleJob(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.Retries,
		Logger:     logr,
	})
	notifier = service.NewNotificationService(queue, sender, metrics, logr, cfg.FrontendURL)
	queue.Start(ctx)
	return notifier, queue.Stop
}
