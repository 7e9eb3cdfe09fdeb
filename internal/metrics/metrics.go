// Package metrics exposes engine-level counters via Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectionsTotal tracks error contexts produced by the detector.
	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_detections_total",
			Help: "Total number of error contexts produced by the detector",
		},
		[]string{"source", "category"},
	)

	// ClassificationsTotal tracks classification attempts by outcome.
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_classifications_total",
			Help: "Total number of classification attempts",
		},
		[]string{"applied"},
	)

	// RoutesTotal tracks routed error contexts by outcome.
	RoutesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_routes_total",
			Help: "Total number of routed error contexts",
		},
		[]string{"outcome"},
	)

	// DuplicatesSuppressed tracks errors suppressed by the aggregator.
	DuplicatesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ballast_duplicates_suppressed_total",
			Help: "Total number of duplicate errors suppressed within the aggregation window",
		},
	)

	// NotificationsTotal tracks notification deliveries by channel and outcome.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_notifications_total",
			Help: "Total number of notification deliveries",
		},
		[]string{"channel", "outcome"},
	)

	// RetryAttemptsTotal tracks individual retry attempts by outcome.
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_retry_attempts_total",
			Help: "Total number of retry attempts",
		},
		[]string{"outcome"},
	)

	// BreakerTransitionsTotal tracks circuit breaker state changes.
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"breaker", "to"},
	)

	// BreakerRejectionsTotal tracks calls rejected by open breakers.
	BreakerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_breaker_rejections_total",
			Help: "Total number of calls rejected by open circuit breakers",
		},
		[]string{"breaker"},
	)

	// BulkheadRejectionsTotal tracks calls rejected at compartment admission.
	BulkheadRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_bulkhead_rejections_total",
			Help: "Total number of calls rejected at bulkhead admission",
		},
		[]string{"compartment", "reason"},
	)

	// TimeoutViolationsTotal tracks operations that exceeded their bound.
	TimeoutViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_timeout_violations_total",
			Help: "Total number of operations that exceeded their timeout",
		},
		[]string{"operation"},
	)

	// SLAViolationsTotal tracks recorded SLA violations.
	SLAViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_sla_violations_total",
			Help: "Total number of recorded SLA violations",
		},
		[]string{"service", "metric"},
	)

	// OperationLatency tracks guarded operation latency.
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ballast_operation_latency_seconds",
			Help:    "Latency of guarded operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"guard"},
	)
)
