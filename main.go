package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bluecrab/gis-backend/internal/analytics"
	"github.com/bluecrab/gis-backend/internal/api"
	"github.com/bluecrab/gis-backend/internal/config"
	"github.com/bluecrab/gis-backend/internal/db"
	"github.com/bluecrab/gis-backend/internal/logger"
	"github.com/bluecrab/gis-backend/internal/metrics"
	"github.com/bluecrab/gis-backend/internal/survey"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config: ", err)
	}
	zl, err := logger.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		log.Fatal("init logger: ", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger) error {
	gdb, err := db.Open(cfg.Database, zl)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()

	// A failed legacy migration leaves the old table and its backup in place;
	// keep serving so the data stays readable.
	if err := survey.Migrate(ctx, gdb, zl); err != nil {
		if !errors.Is(err, survey.ErrMigration) {
			return err
		}
		zl.Error("schema migration failed, continuing on existing schema", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}

	store := survey.NewStore(gdb, survey.WithLogger(zl), survey.WithRecorder(rec))
	h := api.New(store, analytics.New(gdb), zl)
	router := api.NewRouter(h, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Limiter:        rate.NewLimiter(rate.Limit(cfg.Server.RPS), cfg.Server.Burst),
		Gatherer:       reg,
	}, zl)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	zl.Info("server exited gracefully")
	return nil
}
