package hae

import (
	"reflect"
	"testing"

	"github.com/claude/healthingest/internal/models"
)

// TestFlattenMetricsAbsentFields verifies that a sample with only date and qty
// yields a payload holding exactly qty, with no placeholders for other fields.
func TestFlattenMetricsAbsentFields(t *testing.T) {
	batch := models.MetricBatch{{
		Name:  "HeartRate",
		Units: "count/min",
		Samples: []models.Datum{
			{"date": "2023-01-01 00:00:00 +0000", "qty": 62.0},
		},
	}}

	records := FlattenMetrics(batch)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Name != "HeartRate" {
		t.Errorf("name = %q, want HeartRate", rec.Name)
	}
	if rec.Timestamp != "2023-01-01 00:00:00 +0000" {
		t.Errorf("timestamp = %q", rec.Timestamp)
	}
	want := map[string]any{"qty": 62.0}
	if !reflect.DeepEqual(rec.Data, want) {
		t.Errorf("data = %v, want %v", rec.Data, want)
	}
}

// TestFlattenMetricsDropsUnitsAndNulls verifies that units never reach the
// payload and that null optional fields are omitted like absent ones.
func TestFlattenMetricsDropsUnitsAndNulls(t *testing.T) {
	batch := models.MetricBatch{{
		Name:  "sleep_analysis",
		Units: "hr",
		Samples: []models.Datum{{
			"date":       "2023-01-02 00:00:00 -0800",
			"asleep":     7.2,
			"deep":       nil,
			"sleepStart": "2023-01-01 23:00:00 -0800",
			"source":     "Watch",
		}},
	}}

	rec := FlattenMetrics(batch)[0]
	if _, ok := rec.Data["units"]; ok {
		t.Error("units must not be copied into the payload")
	}
	if _, ok := rec.Data["deep"]; ok {
		t.Error("null field must be omitted")
	}
	if _, ok := rec.Data["date"]; ok {
		t.Error("date must be removed from the payload")
	}
	if rec.Data["sleepStart"] != "2023-01-01 23:00:00 -0800" || rec.Data["source"] != "Watch" {
		t.Errorf("payload = %v", rec.Data)
	}
}

// TestFlattenMetricsOrder verifies one record per sample across metrics, in
// upload order.
func TestFlattenMetricsOrder(t *testing.T) {
	batch := models.MetricBatch{
		{Name: "a", Samples: []models.Datum{{"date": "1"}, {"date": "2"}}},
		{Name: "b", Samples: nil},
		{Name: "c", Samples: []models.Datum{{"date": "3"}}},
	}
	records := FlattenMetrics(batch)
	var got []string
	for _, r := range records {
		got = append(got, r.Name+"@"+r.Timestamp)
	}
	want := []string{"a@1", "a@2", "c@3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// TestFlattenWorkoutsKeepsWholeObject verifies that the workout payload keeps
// name, start, end and nested details, and that start becomes the timestamp.
func TestFlattenWorkoutsKeepsWholeObject(t *testing.T) {
	batch := models.WorkoutBatch{{
		"name":     "Run",
		"start":    "2023-01-01 08:00:00 -0500",
		"end":      "2023-01-01 09:00:00 -0500",
		"distance": map[string]any{"units": "mi", "qty": 3.1},
		"speed":    nil,
	}}

	rec := FlattenWorkouts(batch)[0]
	if rec.Name != "Run" || rec.Timestamp != "2023-01-01 08:00:00 -0500" {
		t.Errorf("name/timestamp = %q/%q", rec.Name, rec.Timestamp)
	}
	want := map[string]any{
		"name":     "Run",
		"start":    "2023-01-01 08:00:00 -0500",
		"end":      "2023-01-01 09:00:00 -0500",
		"distance": map[string]any{"units": "mi", "qty": 3.1},
	}
	if !reflect.DeepEqual(rec.Data, want) {
		t.Errorf("data = %v, want %v", rec.Data, want)
	}
}

// TestFlattenWorkoutsNestedNulls verifies the absent-field policy inside
// dated sub-sequences.
func TestFlattenWorkoutsNestedNulls(t *testing.T) {
	batch := models.WorkoutBatch{{
		"name":  "Run",
		"start": "s",
		"end":   "e",
		"heartRateData": []any{
			map[string]any{"units": "bpm", "qty": 120.0, "date": nil},
		},
	}}

	rec := FlattenWorkouts(batch)[0]
	entries := rec.Data["heartRateData"].([]any)
	entry := entries[0].(map[string]any)
	if _, ok := entry["date"]; ok {
		t.Errorf("null date should be omitted, got %v", entry)
	}
	if entry["qty"] != 120.0 {
		t.Errorf("qty = %v", entry["qty"])
	}
}

// TestFlattenDoesNotMutateInput verifies that flattening copies the payload,
// so later normalization cannot alter the validated batch.
func TestFlattenDoesNotMutateInput(t *testing.T) {
	datum := models.Datum{"date": "2023-01-01 00:00:00 +0000", "qty": 1.0}
	FlattenMetrics(models.MetricBatch{{Name: "x", Samples: []models.Datum{datum}}})
	if datum.Date() == "" {
		t.Error("input datum lost its date")
	}

	hr := []any{map[string]any{"date": "2023-01-01 00:00:00 -0500"}}
	w := models.Workout{"name": "Run", "start": "s", "end": "e", "heartRateData": hr}
	rec := FlattenWorkouts(models.WorkoutBatch{w})[0]
	rec.Data["heartRateData"].([]any)[0].(map[string]any)["date"] = "changed"
	if hr[0].(map[string]any)["date"] != "2023-01-01 00:00:00 -0500" {
		t.Error("nested entry of the input was mutated")
	}
}
