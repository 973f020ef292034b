package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/beacon/pkg/monitor"
)

type fakeStatusSource struct {
	status monitor.Status
}

func (f fakeStatusSource) Status() monitor.Status { return f.status }

func TestHealthz_AlwaysOK(t *testing.T) {
	s := New(fakeStatusSource{status: monitor.Status{}}, time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
}

func TestReadyz_NotReadyBeforeFirstTick(t *testing.T) {
	s := New(fakeStatusSource{status: monitor.Status{}}, time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503 before any tick", rec.Code)
	}
}

func TestReadyz_ReadyAfterRecentTick(t *testing.T) {
	s := New(fakeStatusSource{status: monitor.Status{TickCount: 3, LastTickAt: time.Now()}}, time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}

	var resp readyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ready" {
		t.Errorf("got status %q", resp.Status)
	}
}

func TestReadyz_NotReadyWhenTickStale(t *testing.T) {
	s := New(fakeStatusSource{status: monitor.Status{TickCount: 3, LastTickAt: time.Now().Add(-time.Hour)}}, time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503 for a stale tick", rec.Code)
	}
}

func TestMetricsEndpoint_Served(t *testing.T) {
	s := New(fakeStatusSource{}, time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200 from /metrics", rec.Code)
	}
}
