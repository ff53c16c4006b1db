package hae

import "github.com/claude/healthingest/internal/models"

// NormalizeTimestamp rewrites a HAE timestamp ("2023-05-01 08:00:00 -0700",
// optionally with a zone abbreviation) as its UTC equivalent
// ("2023-05-01 15:00:00 +0000 UTC"). Anything else is returned unchanged
// with ok set to false.
func NormalizeTimestamp(s string) (normalized string, ok bool) {
	t, err := models.ParseHAETime(s)
	if err != nil {
		return s, false
	}
	return models.FormatHAETime(t), true
}

// timestampFields names the payload keys of one record kind that hold
// timestamps besides the partition key.
type timestampFields struct {
	topLevel  []string // string fields directly on the payload
	sequences []string // arrays of objects, each with its own "date"
}

var (
	datumTimestamps = timestampFields{
		topLevel: []string{"sleepStart", "sleepEnd", "inBedStart", "inBedEnd"},
	}
	workoutTimestamps = timestampFields{
		topLevel:  []string{"start", "end"},
		sequences: []string{"heartRateData", "heartRateRecovery"},
	}
)

// normalize rewrites the timestamp and the known timestamp fields of rec in
// place. It returns how many present values could not be parsed.
func (f timestampFields) normalize(rec *models.Record) int {
	unparsed := 0
	apply := func(s string) string {
		n, ok := NormalizeTimestamp(s)
		if !ok {
			unparsed++
		}
		return n
	}

	rec.Timestamp = apply(rec.Timestamp)

	for _, key := range f.topLevel {
		if s, ok := rec.Data[key].(string); ok {
			rec.Data[key] = apply(s)
		}
	}

	for _, key := range f.sequences {
		entries, _ := rec.Data[key].([]any)
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := entry["date"].(string); ok {
				entry["date"] = apply(s)
			}
		}
	}
	return unparsed
}
