// Package metrics exposes the monitor's Prometheus counters, gauges, and
// histograms, following the teacher's pkg/metrics convention of
// package-level collectors registered against the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_ticks_total",
			Help: "Total number of monitor loop ticks completed",
		},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beacon_tick_duration_seconds",
			Help:    "Duration of a full monitor loop tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_events_total",
			Help: "Total number of HealthEvents emitted by condition",
		},
		[]string{"condition", "layer"},
	)

	RestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_restarts_total",
			Help: "Total number of restart procedures attempted by scope and outcome",
		},
		[]string{"scope", "outcome"},
	)

	RestartDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beacon_restart_duration_seconds",
			Help:    "Duration of a restart procedure by scope",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"scope"},
	)

	ProbeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_probe_failures_total",
			Help: "Total number of failed node probes by kind",
		},
		[]string{"kind"},
	)

	StallSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beacon_stall_seconds",
			Help: "Seconds since the last ordinal advance for a tracked key",
		},
		[]string{"node", "layer"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		TickDuration,
		EventsTotal,
		RestartsTotal,
		RestartDuration,
		ProbeFailuresTotal,
		StallSeconds,
	)
}

// Handler returns the promhttp handler for the default registry, matching
// the teacher's metrics.Handler() convention used by its health server.
func Handler() http.Handler {
	return promhttp.Handler()
}
