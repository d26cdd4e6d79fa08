// Package metrics holds the Prometheus instrumentation for the
// reconfiguration service: messages sent per module, stale-info resets,
// per-peer queue drops, failure-detector beat-threshold trips, and HTTP
// route latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter/histogram this process exports.
type Metrics struct {
	namespace string

	// MessagesSent mirrors the original's single msgs_sent counter,
	// broken out by module (original_source/resolve/resolver.py's
	// on_message_sent).
	MessagesSent *prometheus.CounterVec

	// StaleInfoResets is labelled by triggering predicate (type1..type4,
	// config_conflict) for brute-force config_set(BOTTOM) resets. It is
	// registered here; no module in this repository increments it.
	StaleInfoResets *prometheus.CounterVec

	// QueueDrops counts messages dropped by a per-peer bounded send
	// queue hitting MAX_QUEUE_SIZE.
	QueueDrops *prometheus.CounterVec

	// BeatThresholdTrips is the counter for a peer aging out of trusted_i.
	// It is registered here; the failure detector does not increment it.
	BeatThresholdTrips prometheus.Counter

	// HTTPRequestDuration observes handler latency by route and status.
	HTTPRequestDuration *prometheus.HistogramVec
}

// New constructs and registers every metric under namespace (typically
// "recsa") against reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		namespace: namespace,
		MessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "messages_sent_total",
			Help:      "Total messages sent by module type.",
		}, []string{"module"}),
		StaleInfoResets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recsa",
			Name:      "stale_info_resets_total",
			Help:      "Total brute-force config resets by triggering predicate.",
		}, []string{"reason"}),
		QueueDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "queue_drops_total",
			Help:      "Total messages dropped from a full per-peer send queue.",
		}, []string{"peer"}),
		BeatThresholdTrips: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fd",
			Name:      "beat_threshold_trips_total",
			Help:      "Total times a peer's beat counter crossed BEAT_THRESHOLD, dropping it from trusted.",
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP handler latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
