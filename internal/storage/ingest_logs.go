package storage

import (
	"context"
	"fmt"

	"github.com/claude/healthingest/internal/models"
)

// InsertIngestLog records the outcome of one upload and returns its ID.
func (db *DB) InsertIngestLog(ctx context.Context, entry models.IngestLog) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO ingest_logs (kind, status, records_received, records_inserted, duration_ms, error_message)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING id`,
		entry.Kind, entry.Status, entry.RecordsReceived, entry.RecordsInserted,
		entry.DurationMs, entry.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting ingest log: %w", err)
	}
	return id, nil
}

