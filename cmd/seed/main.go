// Command seed loads a small demo marketplace into the storefront database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Papaai2/baladymall-sub000/internal/config"
	"github.com/Papaai2/baladymall-sub000/internal/repository/postgres"
	"github.com/Papaai2/baladymall-sub000/pkg/database"
	"github.com/Papaai2/baladymall-sub000/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New("storefront-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, postgres.Migrations(), log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	data := postgres.DemoData()
	if err := postgres.Seed(ctx, pool, data); err != nil {
		return err
	}

	log.Info("demo data seeded",
		slog.Int("users", len(data.Users)),
		slog.Int("brands", len(data.Brands)),
		slog.Int("products", len(data.Products)),
	)
	return nil
}
