package hae

import "github.com/claude/healthingest/internal/models"

// datumTimestampKey is removed from a sample's payload once it has become
// the record's timestamp.
const datumTimestampKey = "date"

// FlattenMetrics turns every sample of every metric into a record named
// after its metric. The sample's date becomes the timestamp and is removed
// from the payload; the metric's units are not copied into the payload.
func FlattenMetrics(batch models.MetricBatch) []models.Record {
	var records []models.Record
	for _, m := range batch {
		for _, d := range m.Samples {
			payload := compact(d)
			delete(payload, datumTimestampKey)
			records = append(records, models.Record{
				Name:      m.Name,
				Data:      payload,
				Timestamp: d.Date(),
			})
		}
	}
	return records
}

// FlattenWorkouts turns each workout into one record. The whole workout,
// start and end included, is the payload; start is the timestamp.
func FlattenWorkouts(batch models.WorkoutBatch) []models.Record {
	records := make([]models.Record, 0, len(batch))
	for _, w := range batch {
		records = append(records, models.Record{
			Name:      w.Name(),
			Data:      compact(w),
			Timestamp: w.Start(),
		})
	}
	return records
}

// compact returns a deep copy of m without null-valued keys, at every level.
// Array elements are kept even when null.
func compact(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = compactValue(v)
	}
	return out
}

func compactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return compact(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = compactValue(e)
		}
		return out
	default:
		return v
	}
}
