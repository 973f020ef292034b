/*
Package httpapi exposes the monitor's own liveness/readiness/metrics
surface (spec's SUPPLEMENTED FEATURES #2): /healthz, /readyz, /metrics.
It reports the Monitor Loop's own tick liveness, never cluster member
health — that is the Condition Engine's job, routed to the notifier.

Grounded on the teacher's pkg/api.HealthServer, adapted to gorilla/mux
(the pack's routing library for this domain) in place of a bare
http.ServeMux.
*/
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cuemby/beacon/internal/metrics"
	"github.com/cuemby/beacon/pkg/monitor"
)

// StatusSource is the subset of *monitor.Monitor the handlers depend on.
type StatusSource interface {
	Status() monitor.Status
}

// Server is the monitor's own ambient HTTP surface.
type Server struct {
	monitor StatusSource
	// staleAfter bounds how long since the last tick before readyz
	// reports not-ready; it should be a small multiple of the tick
	// interval.
	staleAfter time.Duration
	router     *mux.Router
}

// New builds a Server wired to mon's liveness status.
func New(mon StatusSource, staleAfter time.Duration) *Server {
	s := &Server{monitor: mon, staleAfter: staleAfter, router: mux.NewRouter()}
	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.readyz).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return s
}

// Handler returns the HTTP handler to mount or serve directly.
func (s *Server) Handler() http.Handler {
	return s.router
}

type healthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	Timestamp time.Time `json:"timestamp"`
}

// healthz always reports alive if the process can answer at all — it
// does not depend on tick freshness.
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	status := s.monitor.Status()
	resp := healthResponse{Status: "alive", StartedAt: status.StartedAt, Timestamp: time.Now()}
	writeJSON(w, http.StatusOK, resp)
}

type readyResponse struct {
	Status       string    `json:"status"`
	TickCount    int64     `json:"tickCount"`
	LastTickAt   time.Time `json:"lastTickAt"`
	SecondsStale float64   `json:"secondsSinceLastTick"`
}

// readyz reports not-ready when the loop has never ticked, or when the
// last tick is older than staleAfter — a proxy for a wedged monitor loop.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	status := s.monitor.Status()

	if status.TickCount == 0 {
		writeJSON(w, http.StatusServiceUnavailable, readyResponse{Status: "not ready: no tick yet"})
		return
	}

	stale := time.Since(status.LastTickAt)
	resp := readyResponse{
		Status:       "ready",
		TickCount:    status.TickCount,
		LastTickAt:   status.LastTickAt,
		SecondsStale: stale.Seconds(),
	}

	statusCode := http.StatusOK
	if s.staleAfter > 0 && stale > s.staleAfter {
		resp.Status = "not ready: tick loop appears stalled"
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, resp)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
