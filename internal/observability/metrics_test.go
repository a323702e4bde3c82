package observability

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMetricsTracksSteps(t *testing.T) {
	metrics := NewMetrics()
	span := metrics.Start("reserve")
	time.Sleep(1 * time.Millisecond)
	span.End(nil)

	span = metrics.Start("reserve")
	span.End(errors.New("fail"))

	snap := metrics.Snapshot()
	stats := snap.Steps["reserve"]
	if stats.Count != 2 {
		t.Fatalf("expected 2 calls, got %d", stats.Count)
	}
	if stats.Errors != 1 {
		t.Fatalf("expected 1 error, got %d", stats.Errors)
	}
	if stats.InFlight != 0 {
		t.Fatalf("expected 0 inflight, got %d", stats.InFlight)
	}
	if snap.TotalRequests != 2 || snap.TotalErrors != 1 {
		t.Fatalf("unexpected totals: %+v", snap)
	}
}

func TestMetricsTracksCompensations(t *testing.T) {
	metrics := NewMetrics()
	metrics.AddCompensation("refund_payment", false)
	metrics.AddCompensation("refund_payment", true)
	metrics.AddCompensation("release_reservation", false)

	snap := metrics.Snapshot()
	refunds := snap.Compensations["refund_payment"]
	if refunds.Attempts != 2 || refunds.Failures != 1 {
		t.Fatalf("unexpected refund stats: %+v", refunds)
	}
	releases := snap.Compensations["release_reservation"]
	if releases.Attempts != 1 || releases.Failures != 0 {
		t.Fatalf("unexpected release stats: %+v", releases)
	}
}

func TestMetricsMarkShutdown(t *testing.T) {
	metrics := NewMetrics()
	metrics.MarkShutdown(5)
	snap := metrics.Snapshot()
	if snap.Lifecycle == nil {
		t.Fatalf("expected lifecycle snapshot")
	}
	if snap.Lifecycle.InFlightAtShutdown != 5 {
		t.Fatalf("expected inflight 5, got %d", snap.Lifecycle.InFlightAtShutdown)
	}
	if snap.Lifecycle.ShutdownAt.IsZero() {
		t.Fatalf("expected shutdown timestamp")
	}
}

func TestHandlerReturnsJSON(t *testing.T) {
	metrics := NewMetrics()
	span := metrics.Start("payment")
	span.End(errors.New("fail"))
	metrics.AddCompensation("release_reservation", false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	Handler(metrics).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if snap.TotalErrors != 1 {
		t.Fatalf("expected total errors 1, got %d", snap.TotalErrors)
	}
	if len(snap.Steps) == 0 {
		t.Fatalf("expected steps in snapshot")
	}
	if len(snap.Compensations) == 0 {
		t.Fatalf("expected compensations in snapshot")
	}
}

func TestMetricsNilSafePaths(t *testing.T) {
	var m *Metrics
	span := m.Start("ignored") // nil-safe
	span.End(nil)              // should not panic

	m.AddCompensation("ignored", true) // nil-safe
	m.MarkShutdown(10)                 // nil-safe
}
