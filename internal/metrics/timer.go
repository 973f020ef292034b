package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Timer measures elapsed wall-clock time and reports it to a histogram,
// mirroring the teacher's metrics.Timer helper used around its
// reconciliation cycle.
type Timer struct {
	start time.Time
}

// NewTimer starts a new Timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the Timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed duration into h.
func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed duration into hv under label.
func (t *Timer) ObserveDurationVec(hv *prometheus.HistogramVec, label string) {
	hv.WithLabelValues(label).Observe(t.Duration().Seconds())
}
