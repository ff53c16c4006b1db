package hae

// fieldKind is the JSON kind a known field must have when present.
type fieldKind int

const (
	kindString      fieldKind = iota
	kindNumber                // JSON number
	kindBool                  // JSON true/false
	kindDetail                // {"units": "...", "qty": N}
	kindElevation             // {"units": "...", "ascent": N, "descent": N}
	kindDatedDetails          // [{"units": "...", "qty": N, "date": "..."}]
)

func (k fieldKind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindNumber:
		return "number"
	case kindBool:
		return "boolean"
	case kindDetail, kindElevation:
		return "object"
	case kindDatedDetails:
		return "array"
	default:
		return "unknown"
	}
}

// fieldSpec describes one known key of an object. Keys not listed in a
// schema are carried through untouched.
type fieldSpec struct {
	name     string
	kind     fieldKind
	required bool
}

// metricSchema covers the scalar keys of a metric entry; its "data" array is
// checked separately against datumSchema.
var metricSchema = []fieldSpec{
	{name: "name", kind: kindString, required: true},
	{name: "units", kind: kindString, required: true},
}

// datumSchema lists every sample field Health Auto Export emits across
// metric types. Which subset appears depends on the metric.
var datumSchema = []fieldSpec{
	{name: "date", kind: kindString, required: true},
	{name: "source", kind: kindString},
	{name: "qty", kind: kindNumber},
	{name: "Avg", kind: kindNumber},
	{name: "Min", kind: kindNumber},
	{name: "Max", kind: kindNumber},
	{name: "deep", kind: kindNumber},
	{name: "core", kind: kindNumber},
	{name: "awake", kind: kindNumber},
	{name: "asleep", kind: kindNumber},
	{name: "rem", kind: kindNumber},
	{name: "inBed", kind: kindNumber},
	{name: "sleepStart", kind: kindString},
	{name: "sleepEnd", kind: kindString},
	{name: "inBedStart", kind: kindString},
	{name: "inBedEnd", kind: kindString},
}

var workoutSchema = []fieldSpec{
	{name: "name", kind: kindString, required: true},
	{name: "start", kind: kindString, required: true},
	{name: "end", kind: kindString, required: true},
	{name: "isIndoor", kind: kindBool},
	{name: "speed", kind: kindDetail},
	{name: "avgHeartRate", kind: kindDetail},
	{name: "maxHeartRate", kind: kindDetail},
	{name: "distance", kind: kindDetail},
	{name: "stepCadence", kind: kindDetail},
	{name: "activeEnergy", kind: kindDetail},
	{name: "totalEnergy", kind: kindDetail},
	{name: "stepCount", kind: kindDetail},
	{name: "flightsClimbed", kind: kindDetail},
	{name: "temperature", kind: kindDetail},
	{name: "humidity", kind: kindDetail},
	{name: "intensity", kind: kindDetail},
	{name: "totalSwimmingStrokeCount", kind: kindDetail},
	{name: "swimCadence", kind: kindDetail},
	{name: "elevation", kind: kindElevation},
	{name: "heartRateData", kind: kindDatedDetails},
	{name: "heartRateRecovery", kind: kindDatedDetails},
}

var detailSchema = []fieldSpec{
	{name: "units", kind: kindString, required: true},
	{name: "qty", kind: kindNumber},
}

var datedDetailSchema = []fieldSpec{
	{name: "units", kind: kindString, required: true},
	{name: "qty", kind: kindNumber},
	{name: "date", kind: kindString},
}

var elevationSchema = []fieldSpec{
	{name: "units", kind: kindString, required: true},
	{name: "ascent", kind: kindNumber},
	{name: "descent", kind: kindNumber},
}
