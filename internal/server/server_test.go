package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/config"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/scheduler"
)

type fakeStatus struct {
	snap scheduler.Snapshot
}

func (f *fakeStatus) Snapshot() scheduler.Snapshot { return f.snap }

func newTestServer(t *testing.T) (*Server, *fakeStatus) {
	t.Helper()
	status := &fakeStatus{
		snap: scheduler.Snapshot{
			State:        "colocated",
			ServiceCores: []int{0, 1},
			Running: []scheduler.JobSnapshot{
				{Name: "canneal", Cores: []int{1, 2, 3}, Threads: 3},
			},
			Pending:   2,
			Completed: []string{"dedup"},
		},
	}
	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 0}
	return New(cfg, status, nil, zap.NewNop()), status
}

func TestStatusHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snap scheduler.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if snap.State != "colocated" {
		t.Errorf("expected colocated, got %q", snap.State)
	}
	if len(snap.Running) != 1 || snap.Running[0].Name != "canneal" {
		t.Errorf("unexpected running set: %+v", snap.Running)
	}
	if snap.Pending != 2 {
		t.Errorf("expected 2 pending, got %d", snap.Pending)
	}
}

func TestStatusHandler_RejectsNonGet(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestEventStream_UnavailableWithoutLogger(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/ws", nil)
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
