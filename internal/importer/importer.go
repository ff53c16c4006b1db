package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/claude/healthingest/internal/ingest"
	"github.com/claude/healthingest/internal/ingest/hae"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	MetricsReceived   int
	MetricsInserted   int64
	MetricsDuplicated int64

	WorkoutsReceived   int
	WorkoutsInserted   int64
	WorkoutsDuplicated int64

	TimestampsPassedThrough int

	// Rejected lists "file: path: reason" for every payload that failed
	// validation.
	Rejected []string
}

// Importer runs Health Auto Export JSON files on disk through the same
// pipeline as the HTTP endpoints.
type Importer struct {
	provider *hae.Provider
	log      *slog.Logger
	dryRun   bool
	stats    Stats
}

// New creates a new Importer. In dry-run mode files are validated, flattened
// and normalized but nothing is written.
func New(store hae.Store, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{
		provider: hae.NewProvider(store, log),
		log:      log,
		dryRun:   dryRun,
	}
}

// Import processes path, which is either a single export file or a
// directory searched recursively for *.json files. Files that fail to parse
// or validate are counted and skipped; a storage error aborts the run.
func (imp *Importer) Import(ctx context.Context, path string) (*Stats, error) {
	files, err := hae.FindExportFiles(path)
	if err != nil {
		return &imp.stats, err
	}
	imp.log.Info("found export files", "count", len(files), "path", path)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &imp.stats, err
		}
		if err := imp.importFile(ctx, f); err != nil {
			return &imp.stats, fmt.Errorf("importing %s: %w", f, err)
		}
	}
	return &imp.stats, nil
}

func (imp *Importer) importFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	body, err := hae.DecodeBody(f)
	if err != nil {
		imp.log.Warn("parse failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return nil
	}

	var kinds []ingest.Kind
	if hae.HasMetrics(body) {
		kinds = append(kinds, ingest.KindMetrics)
	}
	if hae.HasWorkouts(body) {
		kinds = append(kinds, ingest.KindWorkouts)
	}
	if len(kinds) == 0 {
		imp.log.Info("skipping file without metrics or workouts", "file", path)
		imp.stats.FilesSkipped++
		return nil
	}

	failed := false
	for _, kind := range kinds {
		result, err := imp.ingest(ctx, kind, body)
		var ve *ingest.ValidationError
		switch {
		case errors.As(err, &ve):
			imp.log.Warn("payload rejected", "file", path, "kind", kind, "path", ve.Path, "reason", ve.Reason)
			imp.stats.Rejected = append(imp.stats.Rejected, fmt.Sprintf("%s: %s", filepath.Base(path), ve.Error()))
			failed = true
			continue
		case err != nil:
			return err
		}
		imp.record(result)
	}

	if failed {
		imp.stats.FilesErrored++
	} else {
		imp.stats.FilesProcessed++
	}
	return nil
}

func (imp *Importer) ingest(ctx context.Context, kind ingest.Kind, body map[string]any) (*ingest.Result, error) {
	if !imp.dryRun {
		return imp.provider.Ingest(ctx, kind, body)
	}
	prep, err := hae.Prepare(kind, body)
	if err != nil {
		return nil, err
	}
	// Nothing is written in dry-run, so inserted and skipped stay zero.
	return &ingest.Result{
		Kind:                    kind,
		RecordsReceived:         len(prep.Records),
		TimestampsPassedThrough: prep.PassedThrough,
	}, nil
}

func (imp *Importer) record(r *ingest.Result) {
	imp.stats.TimestampsPassedThrough += r.TimestampsPassedThrough
	switch r.Kind {
	case ingest.KindMetrics:
		imp.stats.MetricsReceived += r.RecordsReceived
		imp.stats.MetricsInserted += r.RecordsInserted
		imp.stats.MetricsDuplicated += r.RecordsSkipped
	case ingest.KindWorkouts:
		imp.stats.WorkoutsReceived += r.RecordsReceived
		imp.stats.WorkoutsInserted += r.RecordsInserted
		imp.stats.WorkoutsDuplicated += r.RecordsSkipped
	}
}
