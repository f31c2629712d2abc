package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_hits_total",
			Help: "Cache reads that returned a live entry",
		},
		[]string{"category"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_misses_total",
			Help: "Cache reads that found nothing or an expired entry",
		},
		[]string{"category"},
	)

	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_remote_requests_total",
			Help: "Remote API calls by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	PacerWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_pacer_wait_seconds",
			Help:    "Time spent waiting for a pacer slot",
			Buckets: []float64{0, 0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"pacer"},
	)

	MonitorTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_monitor_ticks_total",
			Help: "Monitor poll ticks by result",
		},
		[]string{"result"},
	)

	ParticipantFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_participant_failures_total",
			Help: "Per-participant enrichment failures by stage",
		},
		[]string{"stage"},
	)

	SnapshotsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_snapshots_published_total",
			Help: "Match snapshots handed to sinks",
		},
	)
)

var BreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "tracker_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)
