package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/claude/healthingest/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "ingest server URL (e.g. http://localhost:8000)")
	exportPath := flag.String("path", "", "directory of Health Auto Export *.json files, or a single file")
	dryRun := flag.Bool("dry-run", false, "validate and split but don't send to server")
	batchSize := flag.Int("batch-size", upload.DefaultBatchSize, "max samples or workouts per request")
	stateDir := flag.String("state-dir", "", "directory for the upload state database (default ~/.healthingest-upload)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("healthingest-upload", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *exportPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: healthingest-upload -server <URL> -path <dir> [-dry-run] [-batch-size N]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *serverURL == "" && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -server is required (or use -dry-run)\n")
		os.Exit(1)
	}
	if _, err := os.Stat(*exportPath); err != nil {
		log.Error("export path not found", "path", *exportPath, "error", err)
		os.Exit(1)
	}

	if *stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		*stateDir = filepath.Join(homeDir, ".healthingest-upload")
	}

	state, err := upload.OpenStateDB(*stateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	if *dryRun {
		log.Info("DRY RUN mode: files will be validated and split but not sent")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uploader := upload.New(upload.NewClient(*serverURL), state, *exportPath, *dryRun, *batchSize, log)
	stats, err := uploader.Run(ctx)
	printStats(stats)
	if err != nil {
		log.Error("upload failed", "error", err)
		os.Exit(1)
	}
	tracked, err := state.UploadedFiles(context.Background())
	if err != nil {
		log.Warn("failed to count tracked files", "error", err)
	}
	log.Info("upload complete", "tracked_files", tracked, "state_dir", *stateDir)
}

func printStats(stats *upload.Stats) {
	fmt.Println()
	fmt.Println("=== Upload Summary ===")
	fmt.Printf("  Files total:      %d\n", stats.FilesTotal)
	fmt.Printf("  Files uploaded:   %d\n", stats.FilesUploaded)
	fmt.Printf("  Files skipped:    %d (already uploaded)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Payloads:         %d\n", stats.PayloadsSent)
	fmt.Printf("  Metric samples:   %d\n", stats.SamplesSent)
	fmt.Printf("  Workouts:         %d\n", stats.WorkoutsSent)
	fmt.Println()
}
