package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/bluecrab/gis-backend/internal/config"
	"github.com/bluecrab/gis-backend/internal/db"
	"github.com/bluecrab/gis-backend/internal/logger"
	"github.com/bluecrab/gis-backend/internal/survey"
	"github.com/bluecrab/gis-backend/internal/surveyimport"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env.local")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 1 for a rejected file or failed rows,
// 2 for usage and setup errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("crab-import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		csvPath = fs.String("csv", "", "path to survey CSV")
		confirm = fs.Bool("confirm", false, "commit the rows; without it only validates and previews")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *csvPath == "" {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	zl, err := logger.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer func() { _ = zl.Sync() }()

	gdb, err := db.Open(cfg.Database, zl)
	if err != nil {
		zl.Error("open database", zap.Error(err))
		return 2
	}
	defer func() { _ = db.Close(gdb) }()
	if err := survey.Migrate(ctx, gdb, zl); err != nil {
		if !errors.Is(err, survey.ErrMigration) {
			zl.Error("migrate", zap.Error(err))
			return 2
		}
		zl.Error("schema migration failed, continuing on existing schema", zap.Error(err))
	}

	rep, err := surveyimport.Run(ctx, survey.NewStore(gdb, survey.WithLogger(zl)), surveyimport.Config{
		CSVPath: *csvPath,
		Confirm: *confirm,
	}, zl)
	if err != nil {
		fmt.Fprintln(stderr, err)
		if errors.Is(err, survey.ErrValidation) || errors.Is(err, surveyimport.ErrNoRows) {
			return 1
		}
		return 2
	}
	if err := rep.Write(stdout); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if len(rep.Failures) > 0 {
		return 1
	}
	return 0
}
