package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/claude/healthingest/internal/ingest/hae"
	"github.com/claude/healthingest/internal/models"
)

// fakeStore satisfies hae.Store and Pinger with DO NOTHING conflict semantics.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]models.Record
	logs    []models.IngestLog
	failErr error
	pingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]models.Record{}}
}

func (s *fakeStore) UpsertRecords(_ context.Context, records []models.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}
	var n int64
	for _, r := range records {
		key := r.Name + "|" + r.Timestamp
		if _, ok := s.rows[key]; !ok {
			s.rows[key] = r
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) InsertIngestLog(_ context.Context, entry models.IngestLog) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return int64(len(s.logs)), nil
}

func (s *fakeStore) Ping(context.Context) error {
	return s.pingErr
}

func newTestServer(store *fakeStore, maxBody int64) *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(hae.NewProvider(store, log), store, maxBody, log)
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

// TestUploadMetrics verifies the success message and that the record lands
// in the store.
func TestUploadMetrics(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store, 0)

	rec := post(t, s, "/upload", `{"data": {"metrics": [{"name": "HeartRate", "units": "count/min",
		"data": [{"date": "2023-01-01 00:00:00 +0000", "qty": 62.0}]}]}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decodeBody(t, rec)["status"]; got != "Health data uploaded successfully!" {
		t.Errorf("status message = %q", got)
	}
	if _, ok := store.rows["HeartRate|2023-01-01 00:00:00 +0000 UTC"]; !ok {
		t.Errorf("row missing, have %v", store.rows)
	}
}

// TestUploadWorkouts verifies the workouts endpoint and its message.
func TestUploadWorkouts(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store, 0)

	rec := post(t, s, "/upload/workouts", `{"data": {"workouts": [{"name": "Run",
		"start": "2023-01-01 08:00:00 -0500", "end": "2023-01-01 09:00:00 -0500"}]}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decodeBody(t, rec)["status"]; got != "Workouts data uploaded successfully!" {
		t.Errorf("status message = %q", got)
	}
	if _, ok := store.rows["Run|2023-01-01 13:00:00 +0000 UTC"]; !ok {
		t.Errorf("row missing, have %v", store.rows)
	}
}

// TestUploadResubmission verifies that posting the same body twice succeeds
// both times.
func TestUploadResubmission(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store, 0)
	body := `{"data": {"metrics": [{"name": "step_count", "units": "count",
		"data": [{"date": "2023-01-01 00:00:00 +0000", "qty": 10}]}]}}`

	for i := range 2 {
		if rec := post(t, s, "/upload", body); rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d", i+1, rec.Code)
		}
	}
	if len(store.rows) != 1 {
		t.Errorf("rows = %d, want 1", len(store.rows))
	}
}

// TestUploadErrors verifies the status code and error body for each failure
// class.
func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		maxBody  int64
		failErr  error
		want     int
		wantPath string
	}{
		{
			name:     "malformed json",
			path:     "/upload",
			body:     `{"data": `,
			want:     http.StatusBadRequest,
			wantPath: "body",
		},
		{
			name:     "missing field",
			path:     "/upload",
			body:     `{"data": {"metrics": [{"units": "count", "data": []}]}}`,
			want:     http.StatusUnprocessableEntity,
			wantPath: "data.metrics[0].name",
		},
		{
			name:     "workouts endpoint ignores metrics",
			path:     "/upload/workouts",
			body:     `{"data": {"metrics": []}}`,
			want:     http.StatusUnprocessableEntity,
			wantPath: "data.workouts",
		},
		{
			name:    "body too large",
			path:    "/upload",
			body:    `{"data": {"metrics": []}, "padding": "` + strings.Repeat("x", 256) + `"}`,
			maxBody: 64,
			want:    http.StatusRequestEntityTooLarge,
		},
		{
			name:    "storage failure",
			path:    "/upload",
			body:    `{"data": {"metrics": [{"name": "x", "units": "u", "data": [{"date": "2023-01-01 00:00:00 +0000"}]}]}}`,
			failErr: errors.New("deadlock detected"),
			want:    http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.failErr = tt.failErr
			s := newTestServer(store, tt.maxBody)

			rec := post(t, s, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			resp := decodeBody(t, rec)
			if resp["error"] == "" {
				t.Error("error message missing")
			}
			if resp["path"] != tt.wantPath {
				t.Errorf("path = %q, want %q", resp["path"], tt.wantPath)
			}
			if len(store.rows) != 0 {
				t.Errorf("rows written on failure: %d", len(store.rows))
			}
		})
	}
}

// TestUploadMethodNotAllowed verifies that only POST is routed.
func TestUploadMethodNotAllowed(t *testing.T) {
	s := newTestServer(newFakeStore(), 0)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

// TestHealthz verifies the health check in both states.
func TestHealthz(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store, 0)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || decodeBody(t, rec)["status"] != "ok" {
		t.Errorf("healthy: status = %d", rec.Code)
	}

	store.pingErr = errors.New("connection refused")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: status = %d, want 503", rec.Code)
	}
}

// TestMetricsEndpoint verifies that the Prometheus exposition includes the
// upload counters after a request.
func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(newFakeStore(), 0)
	post(t, s, "/upload", `{"data": {"metrics": []}}`)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthingest_uploads_total") {
		t.Error("uploads counter missing from exposition")
	}
}
