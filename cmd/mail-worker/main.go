// Command mail-worker consumes mail jobs from Redis when MAIL_QUEUE_DRIVER=redis.
package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/internal/service"
	"github.com/noah-isme/student-record-api/pkg/config"
	"github.com/noah-isme/student-record-api/pkg/jobs"
	"github.com/noah-isme/student-record-api/pkg/logger"
	"github.com/noah-isme/student-record-api/pkg/mailer"
	"github.com/noah-isme/student-record-api/pkg/reporter"
)

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

	rep := reporter.New(cfg)
	defer rep.Close() //nolint:errcheck

	sender, err := mailer.New(cfg.Mail, logr)
	if err != nil {
		logr.Fatal("failed to configure mailer", zap.Error(err))
	}

	notifier := service.NewNotificationService(nil, sender, service.NewMetricsService(), logr, cfg.FrontendURL)

	worker := jobs.NewAsynqWorker(jobs.RedisOpt(cfg.Redis), service.MailQueue, cfg.Mail.Workers, logr)
	worker.Handle(service.JobPasswordResetEmail, func(ctx context.Context, job jobs.Job) error {
		err := notifier.HandleJob(ctx, job)
		if err != nil {
			rep.Report(nil, err)
		}
		return err
	})

	if err := worker.Run(); err != nil {
		logr.Fatal("mail worker stopped", zap.Error(err))
	}
}
