// Package metrics holds the Prometheus collectors of the ingest server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "healthingest"

// Outcome label values for Uploads.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	// Uploads counts upload requests by kind and outcome.
	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Upload requests by kind (metrics, workouts) and outcome (ok, rejected, error).",
	}, []string{"kind", "outcome"})

	// Records counts flattened records by kind and whether they were new.
	Records = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_total",
		Help:      "Records written (inserted) or dropped by the conflict rule (duplicate).",
	}, []string{"kind", "result"})

	// TimestampPassThrough counts timestamps stored without UTC normalization.
	TimestampPassThrough = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "timestamp_passthrough_total",
		Help:      "Timestamp strings that did not match the HAE layout and were kept verbatim.",
	}, []string{"kind"})

	// RequestDuration observes HTTP handling time by route pattern.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
