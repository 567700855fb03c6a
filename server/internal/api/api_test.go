package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quotestream/quotestream/pkg/version"
	"github.com/quotestream/quotestream/server/internal/api"
	"github.com/quotestream/quotestream/server/internal/registry"
)

// --- test helpers -----------------------------------------------------------

type nopConn struct{}

func (nopConn) Send([]byte) error { return nil }

type fakeConns int

func (f fakeConns) Count() int { return int(f) }

type fakeBroadcaster struct {
	interval time.Duration
	running  bool
}

func (f fakeBroadcaster) Interval() time.Duration { return f.interval }
func (f fakeBroadcaster) Running() bool           { return f.running }

func newRegistry(n int) *registry.Registry {
	reg := registry.New()
	for i := 0; i < n; i++ {
		reg.Subscribe(nopConn{})
	}
	return reg
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_Serving(t *testing.T) {
	h := api.New(newRegistry(2), fakeConns(3), fakeBroadcaster{interval: time.Second, running: true})
	rr := get(t, h, "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)

	if resp.State != "serving" {
		t.Errorf("state: got %q, want serving", resp.State)
	}
	if resp.SubscriberCount != 2 {
		t.Errorf("subscriber_count: got %d, want 2", resp.SubscriberCount)
	}
	if resp.ConnectionCount != 3 {
		t.Errorf("connection_count: got %d, want 3", resp.ConnectionCount)
	}
	if resp.Interval != "1s" {
		t.Errorf("interval: got %q, want 1s", resp.Interval)
	}
	if resp.Version != version.Version {
		t.Errorf("version: got %q, want %q", resp.Version, version.Version)
	}
}

func TestHealth_Stopped(t *testing.T) {
	h := api.New(newRegistry(0), fakeConns(0), fakeBroadcaster{interval: 250 * time.Millisecond})
	rr := get(t, h, "/api/v1/health")

	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["state"] != "stopped" {
		t.Errorf("state: got %v, want stopped", resp["state"])
	}
	if resp["subscriber_count"].(float64) != 0 {
		t.Errorf("subscriber_count: got %v, want 0", resp["subscriber_count"])
	}
	if resp["interval"] != "250ms" {
		t.Errorf("interval: got %v, want 250ms", resp["interval"])
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	h := api.New(newRegistry(0), fakeConns(0), fakeBroadcaster{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/health", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/subscribers ----------------------------------------------------

func TestSubscribers_Empty(t *testing.T) {
	h := api.New(newRegistry(0), fakeConns(0), fakeBroadcaster{})
	rr := get(t, h, "/api/v1/subscribers")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string][]int64
	decode(t, rr, &resp)
	ids, ok := resp["subscribers"]
	if !ok {
		t.Fatal("subscribers: key missing")
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("subscribers: got %v, want []", ids)
	}
}

func TestSubscribers_ReflectsRegistry(t *testing.T) {
	reg := newRegistry(3)
	if err := reg.Unsubscribe(1); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	h := api.New(reg, fakeConns(2), fakeBroadcaster{})

	var resp api.SubscribersResponse
	decode(t, get(t, h, "/api/v1/subscribers"), &resp)

	want := []int64{0, 2}
	if len(resp.Subscribers) != len(want) {
		t.Fatalf("subscribers: got %v, want %v", resp.Subscribers, want)
	}
	for i := range want {
		if resp.Subscribers[i] != want[i] {
			t.Errorf("subscribers[%d]: got %d, want %d", i, resp.Subscribers[i], want[i])
		}
	}
}

func TestSubscribers_MethodNotAllowed(t *testing.T) {
	h := api.New(newRegistry(0), fakeConns(0), fakeBroadcaster{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/subscribers", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

func TestUnknownRoute_404(t *testing.T) {
	h := api.New(newRegistry(0), fakeConns(0), fakeBroadcaster{})
	if rr := get(t, h, "/api/v1/pipelines"); rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}
