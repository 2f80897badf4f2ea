package main

import (
	"context"
	"flag"
	"log"

	"github.com/bluecrab/gis-backend/internal/config"
	"github.com/bluecrab/gis-backend/internal/db"
	"github.com/bluecrab/gis-backend/internal/logger"
	"github.com/bluecrab/gis-backend/internal/seeds"
	"github.com/bluecrab/gis-backend/internal/survey"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	var (
		reset   = flag.Bool("reset", false, "DANGER: drops all survey tables before seeding")
		records = flag.Int("records", seeds.DefaultRecords, "number of demo records")
	)
	flag.Parse()

	_ = godotenv.Load(".env.local")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logger.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()
	gdb, err := db.Open(cfg.Database, zl)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = db.Close(gdb) }()

	if err := survey.Migrate(ctx, gdb, zl); err != nil {
		zl.Fatal("migrate", zap.Error(err))
	}
	store := survey.NewStore(gdb, survey.WithLogger(zl))
	if *reset {
		if err := store.Reset(ctx); err != nil {
			zl.Fatal("reset", zap.Error(err))
		}
	}

	if err := seeds.SeedAll(ctx, store, *records, zl); err != nil {
		zl.Fatal("seeding failed", zap.Error(err))
	}
}
