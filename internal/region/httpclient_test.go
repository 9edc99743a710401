package region

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"RackPower/internal/driver"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c := NewHTTPClient(ts.URL, "test-token", 5*time.Second)
	c.retryWait = time.Millisecond
	return c
}

func TestUpdateNodePowerState(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.UpdateNodePowerState(context.Background(), "abc123", driver.StateOn); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/rack/v1/nodes/abc123/power-state" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["power_state"] != "on" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestNoSuchNodeNotRetried(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"unknown node"}`, http.StatusNotFound)
	}))

	err := c.MarkNodeFailed(context.Background(), "abc123", "boom")
	var nsn *NoSuchNodeError
	if !errors.As(err, &nsn) {
		t.Fatalf("err = %v, want NoSuchNodeError", err)
	}
	if nsn.SystemID != "abc123" {
		t.Errorf("SystemID = %q, want abc123", nsn.SystemID)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("404 retried: %d calls", calls)
	}
}

func TestServerErrorRetried(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "region restarting", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.SendEvent(context.Background(), EventPoweredOn, "abc123", ""); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestServerErrorRetryBound(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))

	if err := c.SendEvent(context.Background(), EventPoweredOn, "abc123", ""); err == nil {
		t.Fatal("call succeeded, want exhaustion error")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestBadRequestNotRetried(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))

	if err := c.UpdateNodePowerState(context.Background(), "abc123", driver.StateOn); err == nil {
		t.Fatal("call succeeded, want rejection")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("400 retried: %d calls", calls)
	}
}

func TestListNodes(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rack/v1/nodes" || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"nodes":[
			{"system_id":"abc123","hostname":"node1","power_type":"ipmi",
			 "power_state":"on",
			 "power_parameters":{"power_address":"10.0.0.1","power_user":"admin"}},
			{"system_id":"def456","hostname":"node2","power_type":"manual","power_state":"unknown"}
		]}`))
	}))

	nodes, err := c.ListNodes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(nodes))
	}
	if nodes[0].SystemID != "abc123" || nodes[0].PowerState != driver.StateOn {
		t.Errorf("nodes[0] = %+v", nodes[0])
	}
	if nodes[0].Context["power_address"] != "10.0.0.1" {
		t.Errorf("nodes[0].Context = %v", nodes[0].Context)
	}
	if nodes[1].PowerType != "manual" || len(nodes[1].Context) != 0 {
		t.Errorf("nodes[1] = %+v", nodes[1])
	}
}
