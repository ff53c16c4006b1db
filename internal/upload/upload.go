package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/claude/healthingest/internal/ingest/hae"
	"github.com/claude/healthingest/internal/models"
)

// DefaultBatchSize bounds the number of samples (or workouts) per request.
const DefaultBatchSize = 5000

// Stats tracks upload progress.
type Stats struct {
	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int

	PayloadsSent int
	SamplesSent  int
	WorkoutsSent int
}

// Uploader walks a directory of Health Auto Export JSON files, splits them
// into bounded payloads and POSTs them to the ingest server.
type Uploader struct {
	client    *Client
	state     *StateDB
	root      string
	dryRun    bool
	batchSize int
	log       *slog.Logger
	stats     Stats
}

// New creates a new Uploader.
func New(client *Client, state *StateDB, root string, dryRun bool, batchSize int, log *slog.Logger) *Uploader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Uploader{
		client:    client,
		state:     state,
		root:      root,
		dryRun:    dryRun,
		batchSize: batchSize,
		log:       log,
	}
}

// payload is one request body and the endpoint it is meant for.
type payload struct {
	workouts bool
	body     []byte
	samples  int
}

// Run uploads every new or changed *.json file under the root. A file is
// recorded in the state database only after all of its payloads were
// accepted, so a partial failure is retried in full on the next run.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	files, err := hae.FindExportFiles(u.root)
	if err != nil {
		return &u.stats, err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		u.stats.FilesTotal++
		u.processFile(ctx, f)
	}
	return &u.stats, nil
}

func (u *Uploader) processFile(ctx context.Context, path string) {
	relPath, err := filepath.Rel(u.root, path)
	if err != nil || relPath == "." {
		relPath = filepath.Base(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		u.log.Warn("read failed", "file", path, "error", err)
		u.stats.FilesErrored++
		return
	}
	size := int64(len(data))
	hash := HashContent(data)

	uploaded, err := u.state.IsUploaded(ctx, relPath, size, hash)
	if err != nil {
		u.log.Warn("state check failed", "file", path, "error", err)
		u.stats.FilesErrored++
		return
	}
	if uploaded {
		u.stats.FilesSkipped++
		return
	}

	payloads, err := buildPayloads(data, u.batchSize)
	if err != nil {
		u.log.Warn("invalid export file", "file", path, "error", err)
		u.stats.FilesErrored++
		return
	}

	var records int
	for _, p := range payloads {
		if u.dryRun {
			u.log.Info("dry-run: would send", "file", relPath, "workouts", p.workouts, "items", p.samples, "bytes", len(p.body))
		} else {
			send := u.client.SendMetrics
			if p.workouts {
				send = u.client.SendWorkouts
			}
			if err := send(ctx, p.body); err != nil {
				u.log.Error("upload failed", "file", relPath, "error", err)
				u.stats.FilesErrored++
				return
			}
		}
		u.stats.PayloadsSent++
		if p.workouts {
			u.stats.WorkoutsSent += p.samples
		} else {
			u.stats.SamplesSent += p.samples
		}
		records += p.samples
	}

	if u.dryRun {
		return
	}
	if err := u.state.MarkUploaded(ctx, relPath, size, hash, records); err != nil {
		u.log.Warn("failed to mark uploaded", "file", relPath, "error", err)
	}
	u.stats.FilesUploaded++
	u.log.Info("uploaded file", "file", relPath, "payloads", len(payloads), "records", records)
}

// buildPayloads validates an export file and splits it into request bodies
// of at most batchSize metric samples or workouts each.
func buildPayloads(data []byte, batchSize int) ([]payload, error) {
	body, err := hae.DecodeBody(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var out []payload
	if hae.HasMetrics(body) {
		batch, err := hae.ParseMetricBatch(body)
		if err != nil {
			return nil, err
		}
		for _, chunk := range splitMetrics(batch, batchSize) {
			p, err := metricsPayload(chunk)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	if hae.HasWorkouts(body) {
		batch, err := hae.ParseWorkoutBatch(body)
		if err != nil {
			return nil, err
		}
		for start := 0; start < len(batch); start += batchSize {
			chunk := batch[start:min(start+batchSize, len(batch))]
			raw, err := json.Marshal(map[string]any{"data": map[string]any{"workouts": chunk}})
			if err != nil {
				return nil, fmt.Errorf("encoding workouts: %w", err)
			}
			out = append(out, payload{workouts: true, body: raw, samples: len(chunk)})
		}
	}
	return out, nil
}

// splitMetrics packs samples into chunks holding at most size samples in
// total, splitting a metric across chunks when it does not fit. Metrics
// without samples are dropped.
func splitMetrics(batch models.MetricBatch, size int) []models.MetricBatch {
	var chunks []models.MetricBatch
	var cur models.MetricBatch
	room := size

	for _, m := range batch {
		samples := m.Samples
		for len(samples) > 0 {
			n := min(room, len(samples))
			cur = append(cur, models.Metric{Name: m.Name, Units: m.Units, Samples: samples[:n]})
			samples = samples[n:]
			room -= n
			if room == 0 {
				chunks = append(chunks, cur)
				cur = nil
				room = size
			}
		}
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

func metricsPayload(chunk models.MetricBatch) (payload, error) {
	metrics := make([]map[string]any, len(chunk))
	samples := 0
	for i, m := range chunk {
		metrics[i] = map[string]any{"name": m.Name, "units": m.Units, "data": m.Samples}
		samples += len(m.Samples)
	}
	raw, err := json.Marshal(map[string]any{"data": map[string]any{"metrics": metrics}})
	if err != nil {
		return payload{}, fmt.Errorf("encoding metrics: %w", err)
	}
	return payload{body: raw, samples: samples}, nil
}
