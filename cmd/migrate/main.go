// Command migrate applies the embedded SQL migrations.
//
// Usage: migrate [up|down|redo|reset|status|version|up-to N|down-to N]
package main

import (
	"context"
	"log"
	"os"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/migrations"
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

	command := "up"
	var args []string
	if len(os.Args) > 1 {
		command = os.Args[1]
		args = os.Args[2:]
	}

	db, err := database.NewPostgres(context.Background(), cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(zap.NewStdLog(logr))
	if err := goose.SetDialect("postgres"); err != nil {
		logr.Fatal("failed to set goose dialect", zap.Error(err))
	}

	if err := goose.Run(command, db.DB, ".", args...); err != nil {
		logr.Fatal("migration failed", zap.String("command", command), zap.Error(err))
	}
	logr.Info("migration finished", zap.String("command", command))
}
