package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/claude/healthingest/internal/models"
	"github.com/google/uuid"
)

// maxRowsPerStatement keeps each INSERT under PostgreSQL's 65535 bind
// parameter limit.
const maxRowsPerStatement = 10000

const paramsPerRow = 4

// UpsertRecords inserts records into the metrics table inside a single
// transaction. Rows whose (name, timestamp) already exists are skipped.
// Returns the number actually inserted. On any error nothing is committed.
func (db *DB) UpsertRecords(ctx context.Context, records []models.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.beginner.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var inserted int64
	for start := 0; start < len(records); start += maxRowsPerStatement {
		end := min(start+maxRowsPerStatement, len(records))

		query, args, err := buildUpsert(records[start:end])
		if err != nil {
			return 0, err
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("inserting records: %w", err)
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing records: %w", err)
	}
	return inserted, nil
}

func buildUpsert(records []models.Record) (string, []any, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO metrics (id, name, data, timestamp) VALUES ")

	args := make([]any, 0, len(records)*paramsPerRow)
	for i, r := range records {
		data, err := json.Marshal(r.Data)
		if err != nil {
			return "", nil, fmt.Errorf("encoding %s at %s: %w", r.Name, r.Timestamp, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		base := i * paramsPerRow
		fmt.Fprintf(&b, "($%d,$%d,$%d::jsonb,$%d::timestamptz)", base+1, base+2, base+3, base+4)
		args = append(args, uuid.New(), r.Name, data, pgTimestamp(r.Timestamp))
	}
	b.WriteString(" ON CONFLICT (name, timestamp) DO NOTHING")
	return b.String(), args, nil
}

// pgTimestamp converts the canonical "... +0000 UTC" rendering to RFC 3339,
// since PostgreSQL rejects an offset followed by a zone name. Strings that
// are not HAE timestamps are passed through for the database to judge.
func pgTimestamp(s string) string {
	t, err := models.ParseHAETime(s)
	if err != nil {
		return s
	}
	return t.UTC().Format(time.RFC3339)
}
