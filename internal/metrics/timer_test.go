package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestTimer_Duration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	d := timer.Duration()
	if d < 20*time.Millisecond {
		t.Errorf("got %v, want >= 20ms", d)
	}
}

func TestTimer_ObserveDuration(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_timer_observe_seconds",
		Help:    "test",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDuration(h)

	if timer.Duration() == 0 {
		t.Error("expected non-zero duration after ObserveDuration")
	}
}

func TestTimer_ObserveDurationVec(t *testing.T) {
	hv := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_timer_observe_vec_seconds",
			Help:    "test",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDurationVec(hv, "full_layer")

	if timer.Duration() == 0 {
		t.Error("expected non-zero duration after ObserveDurationVec")
	}
}
