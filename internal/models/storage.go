package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record is a flattened sample on its way to the metrics table.
// Timestamp stays a string until the storage layer so that values the
// normalizer could not parse still reach the database verbatim.
type Record struct {
	Name      string
	Data      map[string]any
	Timestamp string
}

// StoredRecord is a row of the metrics table.
type StoredRecord struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// IngestLog is one row of the ingest_logs audit table.
type IngestLog struct {
	ID              int64     `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	Kind            string    `json:"kind"`
	Status          string    `json:"status"`
	RecordsReceived int       `json:"records_received"`
	RecordsInserted int64     `json:"records_inserted"`
	DurationMs      *int      `json:"duration_ms"`
	ErrorMessage    *string   `json:"error_message"`
}
