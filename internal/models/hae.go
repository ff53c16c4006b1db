package models

import (
	"fmt"
	"regexp"
	"time"
)

// Health Auto Export renders every timestamp as "2006-01-02 15:04:05 -0700",
// sometimes followed by a zone abbreviation ("... -0700 PDT").
const (
	HAETimeLayout     = "2006-01-02 15:04:05 -0700"
	HAEZoneTimeLayout = "2006-01-02 15:04:05 -0700 MST"
)

// haeTimePattern is the exact shape ParseHAETime accepts. time.Parse alone
// would also take fractional seconds after the seconds field.
var haeTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} [+-]\d{4}( [A-Za-z]+)?$`)

// ParseHAETime parses a HAE timestamp with or without a trailing zone
// abbreviation. The numeric offset always wins over the abbreviation.
func ParseHAETime(s string) (time.Time, error) {
	if !haeTimePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("cannot parse HAE time %q: not in %q form", s, HAETimeLayout)
	}
	parsed, err := time.Parse(HAETimeLayout, s)
	if err == nil {
		return parsed, nil
	}
	parsed, err2 := time.Parse(HAEZoneTimeLayout, s)
	if err2 == nil {
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse HAE time %q: %w", s, err)
}

// FormatHAETime renders t in UTC using the zone-suffixed HAE layout,
// e.g. "2023-05-01 15:00:00 +0000 UTC".
func FormatHAETime(t time.Time) string {
	return t.UTC().Format(HAEZoneTimeLayout)
}

// Metric is one named health metric from an upload with its samples.
type Metric struct {
	Name    string
	Units   string
	Samples []Datum
}

// MetricBatch is the validated content of a POST /upload body.
type MetricBatch []Metric

// Datum is a single metric sample. Only the fields present in the upload are
// keys of the map; "date" is always present after validation.
type Datum map[string]any

// Date returns the sample's source-local date string.
func (d Datum) Date() string {
	s, _ := d["date"].(string)
	return s
}

// Workout is a single workout session holding every field present in the
// upload, nested detail objects included.
type Workout map[string]any

// Name returns the workout type, e.g. "Outdoor Run".
func (w Workout) Name() string {
	s, _ := w["name"].(string)
	return s
}

// Start returns the source-local start timestamp.
func (w Workout) Start() string {
	s, _ := w["start"].(string)
	return s
}

// WorkoutBatch is the validated content of a POST /upload/workouts body.
type WorkoutBatch []Workout
