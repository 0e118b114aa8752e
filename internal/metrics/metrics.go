// Package metrics declares the Prometheus collectors exported by hotel-scout.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hotelscout"

var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Travel data provider requests by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups by endpoint and result.",
		},
		[]string{"endpoint", "result"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Search pipeline runs by outcome.",
		},
		[]string{"outcome"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Search pipeline stage latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	PhotoTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "photos",
			Name:      "tasks_total",
			Help:      "Photo enrichment tasks by outcome.",
		},
		[]string{"outcome"},
	)

	Events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "events_total",
			Help:      "Conversation events handled by kind.",
		},
		[]string{"kind"},
	)

	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "requests_total",
			Help:      "Bot API requests by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
)
