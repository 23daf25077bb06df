package main

import (
	"context"
	"log"
	"time"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/repository"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/service"
	"github.com/santiagoarielv98/sistema-gestion-academica/pkg/config"
	"github.com/santiagoarielv98/sistema-gestion-academica/pkg/database"
	"github.com/santiagoarielv98/sistema-gestion-academica/pkg/logger"
)

// Seeds the built-in groups and their permissions. Idempotent; run on deploy.
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	groupSvc := service.NewGroupService(repository.NewGroupRepository(db), logr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := groupSvc.Seed(ctx); err != nil {
		logr.Sugar().Fatalw("group seed failed", "error", err)
	}
	logr.Sugar().Infow("groups seeded")
}
