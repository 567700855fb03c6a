package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/quotestream/quotestream/pkg/version"
)

// Subscribers reports the registry's current identities.
type Subscribers interface {
	IDs() []int64
}

// Connections reports the number of open transports.
type Connections interface {
	Count() int
}

// Broadcaster reports the scheduler's state.
type Broadcaster interface {
	Interval() time.Duration
	Running() bool
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	subs  Subscribers
	conns Connections
	bcast Broadcaster
	mux   *http.ServeMux
}

// New creates a Handler and registers all routes.
func New(subs Subscribers, conns Connections, bcast Broadcaster) http.Handler {
	h := &Handler{subs: subs, conns: conns, bcast: bcast, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/subscribers", h.subscribers)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{
		State:           "stopped",
		SubscriberCount: len(h.subs.IDs()),
		ConnectionCount: h.conns.Count(),
		Interval:        h.bcast.Interval().String(),
		Version:         version.Version,
	}
	if h.bcast.Running() {
		resp.State = "serving"
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) subscribers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, SubscribersResponse{Subscribers: h.subs.IDs()})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
