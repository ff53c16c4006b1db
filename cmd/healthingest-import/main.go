package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/healthingest/internal/config"
	"github.com/claude/healthingest/internal/importer"
	"github.com/claude/healthingest/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file to read if present")
	exportPath := flag.String("path", "", "export file or directory of *.json exports (required)")
	dryRun := flag.Bool("dry-run", false, "validate and normalize without writing to the database")
	flag.Parse()

	if *exportPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: healthingest-import -path /path/to/exports [-config config.yaml] [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := cfg.Log.NewLogger(os.Stdout)

	if _, err := os.Stat(*exportPath); err != nil {
		log.Error("export path not found", "path", *exportPath, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var store *storage.DB
	if *dryRun {
		log.Info("DRY RUN mode: no data will be written to the database")
	} else {
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		store, err = storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		log.Info("database connected")
	}

	imp := importer.New(store, log, *dryRun)
	stats, err := imp.Import(ctx, *exportPath)
	printStats(log, stats)
	if err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"metrics_received", stats.MetricsReceived,
		"metrics_inserted", stats.MetricsInserted,
		"metrics_duplicated", stats.MetricsDuplicated,
		"workouts_received", stats.WorkoutsReceived,
		"workouts_inserted", stats.WorkoutsInserted,
		"workouts_duplicated", stats.WorkoutsDuplicated,
		"timestamps_passed_through", stats.TimestampsPassedThrough,
	)
	for _, r := range stats.Rejected {
		log.Warn("rejected payload", "detail", r)
	}
}
