package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/claude/healthingest/internal/models"
)

// testDSN returns a database to run integration tests against, skipping when
// none is configured.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("HEALTHINGEST_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("HEALTHINGEST_TEST_DATABASE_URL not set")
	}
	return dsn
}

// TestEmbeddedMigrations verifies that both migrations are packaged with
// up and down scripts.
func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("reading embedded migrations: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("embedded files = %d, want 4", len(entries))
	}
}

// TestUpsertRecordsPostgres exercises the real write path: first writer
// wins, resubmission inserts nothing, and the ingest log round-trips.
func TestUpsertRecordsPostgres(t *testing.T) {
	dsn := testDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := RunMigrations(dsn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	db, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	name := "test_metric_" + time.Now().Format("150405.000000")
	t.Cleanup(func() {
		db.Pool.Exec(context.Background(), "DELETE FROM metrics WHERE name = $1", name)
	})

	records := []models.Record{
		{Name: name, Data: map[string]any{"qty": 1.0}, Timestamp: "2023-01-01 00:00:00 +0000 UTC"},
		{Name: name, Data: map[string]any{"qty": 2.0}, Timestamp: "2023-01-01 01:00:00 +0000 UTC"},
	}
	n, err := db.UpsertRecords(ctx, records)
	if err != nil || n != 2 {
		t.Fatalf("first upsert = %d, %v; want 2, nil", n, err)
	}

	records[0].Data = map[string]any{"qty": 99.0}
	n, err = db.UpsertRecords(ctx, records)
	if err != nil || n != 0 {
		t.Fatalf("second upsert = %d, %v; want 0, nil", n, err)
	}

	var qty float64
	err = db.Pool.QueryRow(ctx,
		`SELECT (data->>'qty')::float8 FROM metrics WHERE name = $1 AND timestamp = '2023-01-01T00:00:00Z'`,
		name).Scan(&qty)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if qty != 1 {
		t.Errorf("qty = %v, want 1 (first writer)", qty)
	}

	id, err := db.InsertIngestLog(ctx, models.IngestLog{Kind: "metrics", Status: "success", RecordsReceived: 2})
	if err != nil || id == 0 {
		t.Fatalf("insert ingest log = %d, %v", id, err)
	}
	var status string
	var received int
	err = db.Pool.QueryRow(ctx,
		`SELECT status, records_received FROM ingest_logs WHERE id = $1`, id).Scan(&status, &received)
	if err != nil {
		t.Fatalf("select ingest log: %v", err)
	}
	if status != "success" || received != 2 {
		t.Errorf("ingest log = %s/%d, want success/2", status, received)
	}
}
