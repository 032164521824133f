package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutor_turns_total",
		Help: "Turns processed by mode and outcome",
	}, []string{"mode", "outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tutor_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0, 180.0},
	}, []string{"stage"})

	TurnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tutor_turn_duration_seconds",
		Help:    "Request-side latency from turn arrival to response",
		Buckets: []float64{0.5, 1.0, 2.0, 3.0, 5.0, 8.0, 13.0, 21.0, 34.0},
	}, []string{"mode"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutor_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})

	RenderJobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tutor_render_jobs_active",
		Help: "Background render pipelines currently running",
	})

	RenderQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tutor_render_queue_depth",
		Help: "Render pipelines waiting for a worker",
	})

	RenderParts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutor_render_parts_total",
		Help: "Per-part render outcomes",
	}, []string{"outcome"})

	// SessionsPending is only kept by the in-memory store; a shared Redis
	// store has no per-replica view of what is pending.
	SessionsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tutor_sessions_pending",
		Help: "Session records written but not yet delivered (memory store)",
	})

	SessionsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutor_sessions_stored_total",
		Help: "Session records written by this replica",
	})

	SessionsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutor_sessions_delivered_total",
		Help: "Session records delivered to a poller",
	})

	SyncSocketsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tutor_sync_sockets_active",
		Help: "Open avatar sync websockets",
	})
)
