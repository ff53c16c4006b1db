package hae

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/healthingest/internal/ingest"
	"github.com/claude/healthingest/internal/metrics"
	"github.com/claude/healthingest/internal/models"
)

// Store persists flattened records and the audit trail. *storage.DB
// implements it.
type Store interface {
	// UpsertRecords writes all records in one transaction, silently dropping
	// those whose (name, timestamp) already exists. It returns the number of
	// rows actually inserted.
	UpsertRecords(ctx context.Context, records []models.Record) (int64, error)
	InsertIngestLog(ctx context.Context, entry models.IngestLog) (int64, error)
}

// Provider processes Health Auto Export upload bodies.
type Provider struct {
	store Store
	log   *slog.Logger
}

// NewProvider creates a new HAE ingest provider.
func NewProvider(store Store, log *slog.Logger) *Provider {
	return &Provider{store: store, log: log}
}

// Prepared is a validated, flattened and normalized batch that has not been
// written yet.
type Prepared struct {
	Kind          ingest.Kind
	Records       []models.Record
	PassedThrough int
}

// Prepare runs validation, flattening and timezone normalization for one
// upload body without touching the store.
func Prepare(kind ingest.Kind, body map[string]any) (*Prepared, error) {
	prep := &Prepared{Kind: kind}

	switch kind {
	case ingest.KindMetrics:
		batch, err := ParseMetricBatch(body)
		if err != nil {
			return nil, err
		}
		prep.Records = FlattenMetrics(batch)
		for i := range prep.Records {
			prep.PassedThrough += datumTimestamps.normalize(&prep.Records[i])
		}

	case ingest.KindWorkouts:
		batch, err := ParseWorkoutBatch(body)
		if err != nil {
			return nil, err
		}
		prep.Records = FlattenWorkouts(batch)
		for i := range prep.Records {
			prep.PassedThrough += workoutTimestamps.normalize(&prep.Records[i])
		}

	default:
		return nil, fmt.Errorf("unknown upload kind %q", kind)
	}

	return prep, nil
}

// Ingest validates, normalizes and stores one upload body. Either every
// record is committed (duplicates skipped) or none is.
func (p *Provider) Ingest(ctx context.Context, kind ingest.Kind, body map[string]any) (*ingest.Result, error) {
	start := time.Now()
	result := &ingest.Result{Kind: kind}

	prep, err := Prepare(kind, body)
	if err != nil {
		metrics.Uploads.WithLabelValues(string(kind), metrics.OutcomeRejected).Inc()
		p.audit(ctx, result, "rejected", start, err)
		return nil, err
	}
	result.RecordsReceived = len(prep.Records)
	result.TimestampsPassedThrough = prep.PassedThrough

	if prep.PassedThrough > 0 {
		metrics.TimestampPassThrough.WithLabelValues(string(kind)).Add(float64(prep.PassedThrough))
		p.log.Warn("timestamps stored without UTC normalization",
			"kind", kind, "count", prep.PassedThrough)
	}

	if len(prep.Records) > 0 {
		inserted, err := p.store.UpsertRecords(ctx, prep.Records)
		if err != nil {
			serr := &ingest.StorageError{Err: err}
			metrics.Uploads.WithLabelValues(string(kind), metrics.OutcomeError).Inc()
			p.audit(ctx, result, "error", start, serr)
			return nil, serr
		}
		result.RecordsInserted = inserted
		result.RecordsSkipped = int64(len(prep.Records)) - inserted
	}

	metrics.Uploads.WithLabelValues(string(kind), metrics.OutcomeOK).Inc()
	metrics.Records.WithLabelValues(string(kind), "inserted").Add(float64(result.RecordsInserted))
	metrics.Records.WithLabelValues(string(kind), "duplicate").Add(float64(result.RecordsSkipped))

	p.log.Info("upload stored",
		"kind", kind,
		"received", result.RecordsReceived,
		"inserted", result.RecordsInserted,
		"skipped", result.RecordsSkipped,
	)
	p.audit(ctx, result, "success", start, nil)
	return result, nil
}

// audit records the outcome in ingest_logs. Failing to do so never fails
// the upload itself.
func (p *Provider) audit(ctx context.Context, result *ingest.Result, status string, start time.Time, cause error) {
	ms := int(time.Since(start).Milliseconds())
	entry := models.IngestLog{
		Kind:            string(result.Kind),
		Status:          status,
		RecordsReceived: result.RecordsReceived,
		RecordsInserted: result.RecordsInserted,
		DurationMs:      &ms,
	}
	if cause != nil {
		msg := cause.Error()
		entry.ErrorMessage = &msg
	}
	if _, err := p.store.InsertIngestLog(ctx, entry); err != nil {
		p.log.Warn("failed to write ingest log", "kind", result.Kind, "status", status, "error", err)
	}
}
