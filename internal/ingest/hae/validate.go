package hae

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/claude/healthingest/internal/ingest"
	"github.com/claude/healthingest/internal/models"
)

// DecodeBody reads a JSON request body into an untyped tree. The top level
// must be a single object with nothing but whitespace after it.
func DecodeBody(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, malformed("invalid JSON: " + err.Error())
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, malformed("invalid JSON: unexpected data after top-level value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, mismatch("body", "object", v)
	}
	return obj, nil
}

// HasMetrics reports whether body carries a data.metrics key.
func HasMetrics(body map[string]any) bool {
	return hasDataKey(body, "metrics")
}

// HasWorkouts reports whether body carries a data.workouts key.
func HasWorkouts(body map[string]any) bool {
	return hasDataKey(body, "workouts")
}

func hasDataKey(body map[string]any, key string) bool {
	data, ok := body["data"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = data[key]
	return ok
}

// ParseMetricBatch validates the body of a metrics upload. A data.workouts
// key, if present, is ignored.
func ParseMetricBatch(body map[string]any) (models.MetricBatch, error) {
	entries, err := dataArray(body, "metrics")
	if err != nil {
		return nil, err
	}

	batch := make(models.MetricBatch, 0, len(entries))
	for i, raw := range entries {
		path := fmt.Sprintf("data.metrics[%d]", i)
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, mismatch(path, "object", raw)
		}
		if err := checkFields(obj, path, metricSchema); err != nil {
			return nil, err
		}

		samples, ok := obj["data"].([]any)
		if !ok {
			if obj["data"] == nil {
				return nil, missing(path+".data", "array")
			}
			return nil, mismatch(path+".data", "array", obj["data"])
		}

		m := models.Metric{
			Name:    obj["name"].(string),
			Units:   obj["units"].(string),
			Samples: make([]models.Datum, 0, len(samples)),
		}
		for j, s := range samples {
			spath := fmt.Sprintf("%s.data[%d]", path, j)
			datum, ok := s.(map[string]any)
			if !ok {
				return nil, mismatch(spath, "object", s)
			}
			if err := checkFields(datum, spath, datumSchema); err != nil {
				return nil, err
			}
			m.Samples = append(m.Samples, models.Datum(datum))
		}
		batch = append(batch, m)
	}
	return batch, nil
}

// ParseWorkoutBatch validates the body of a workouts upload. A data.metrics
// key, if present, is ignored.
func ParseWorkoutBatch(body map[string]any) (models.WorkoutBatch, error) {
	entries, err := dataArray(body, "workouts")
	if err != nil {
		return nil, err
	}

	batch := make(models.WorkoutBatch, 0, len(entries))
	for i, raw := range entries {
		path := fmt.Sprintf("data.workouts[%d]", i)
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, mismatch(path, "object", raw)
		}
		if err := checkFields(obj, path, workoutSchema); err != nil {
			return nil, err
		}
		batch = append(batch, models.Workout(obj))
	}
	return batch, nil
}

// dataArray returns body.data.<key>, which must be an array.
func dataArray(body map[string]any, key string) ([]any, error) {
	rawData, ok := body["data"]
	if !ok || rawData == nil {
		return nil, missing("data", "object")
	}
	data, ok := rawData.(map[string]any)
	if !ok {
		return nil, mismatch("data", "object", rawData)
	}

	path := "data." + key
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil, missing(path, "array")
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, mismatch(path, "array", raw)
	}
	return arr, nil
}

// checkFields type-checks the known keys of obj against schema. A null
// value counts as absent.
func checkFields(obj map[string]any, path string, schema []fieldSpec) error {
	for _, spec := range schema {
		fpath := path + "." + spec.name
		v := obj[spec.name]
		if v == nil {
			if spec.required {
				return missing(fpath, spec.kind.String())
			}
			continue
		}
		if err := checkValue(v, fpath, spec.kind); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(v any, path string, kind fieldKind) error {
	switch kind {
	case kindString:
		if _, ok := v.(string); !ok {
			return mismatch(path, "string", v)
		}
	case kindNumber:
		if _, ok := v.(float64); !ok {
			return mismatch(path, "number", v)
		}
	case kindBool:
		if _, ok := v.(bool); !ok {
			return mismatch(path, "boolean", v)
		}
	case kindDetail, kindElevation:
		obj, ok := v.(map[string]any)
		if !ok {
			return mismatch(path, "object", v)
		}
		schema := detailSchema
		if kind == kindElevation {
			schema = elevationSchema
		}
		return checkFields(obj, path, schema)
	case kindDatedDetails:
		arr, ok := v.([]any)
		if !ok {
			return mismatch(path, "array", v)
		}
		for i, e := range arr {
			epath := fmt.Sprintf("%s[%d]", path, i)
			obj, ok := e.(map[string]any)
			if !ok {
				return mismatch(epath, "object", e)
			}
			if err := checkFields(obj, epath, datedDetailSchema); err != nil {
				return err
			}
		}
	}
	return nil
}

func missing(path, expected string) error {
	return &ingest.ValidationError{
		Path:   path,
		Reason: fmt.Sprintf("required field missing (expected %s)", expected),
	}
}

func mismatch(path, expected string, got any) error {
	return &ingest.ValidationError{
		Path:   path,
		Reason: fmt.Sprintf("expected %s, got %s", expected, jsonKind(got)),
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func malformed(reason string) error {
	return &ingest.ValidationError{
		Path:   "body",
		Reason: reason,
		Err:    ingest.ErrMalformedJSON,
	}
}
