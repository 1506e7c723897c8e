// Command seed-admin creates the bootstrap administrator when none exists.
package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/internal/models"
	"github.com/noah-isme/student-record-api/internal/repository"
	"github.com/noah-isme/student-record-api/internal/service"
	"github.com/noah-isme/student-record-api/pkg/config"
	"github.com/noah-isme/student-record-api/pkg/database"
	"github.com/noah-isme/student-record-api/pkg/logger"
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	users := repository.NewUserRepository(db)
	exists, err := users.AdminExists(ctx)
	if err != nil {
		logr.Fatal("failed to check for admin", zap.Error(err))
	}
	if exists {
		logr.Info("admin already exists, nothing to seed")
		return
	}

	auth := service.NewAuthService(service.AuthServiceParams{
		Users:  users,
		Audit:  repository.NewAuditRepository(db),
		Logger: logr,
		Config: service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer},
	})
	admin, err := auth.Register(ctx, "", models.RegisterRequest{
		Name:     cfg.Seed.AdminName,
		Email:    cfg.Seed.AdminEmail,
		Password: cfg.Seed.AdminPassword,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		logr.Fatal("failed to create admin", zap.Error(err))
	}
	logr.Info("admin created", zap.String("id", admin.ID), zap.String("email", admin.Email))
}
