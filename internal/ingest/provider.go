package ingest

// Kind identifies which upload endpoint a batch came from.
type Kind string

const (
	KindMetrics  Kind = "metrics"
	KindWorkouts Kind = "workouts"
)

// Result holds the outcome of an ingest operation. It is used for logging,
// instrumentation and the audit trail; the HTTP acknowledgment does not
// expose it.
type Result struct {
	Kind            Kind  `json:"kind"`
	RecordsReceived int   `json:"records_received"`
	RecordsInserted int64 `json:"records_inserted"`
	RecordsSkipped  int64 `json:"records_skipped"`

	// TimestampsPassedThrough counts timestamp strings the normalizer could
	// not parse and stored as received.
	TimestampsPassedThrough int `json:"timestamps_passed_through,omitempty"`
}
