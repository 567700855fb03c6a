// Package metrics exposes Prometheus instrumentation for quotestream-server.
//
// All methods are safe to call on a nil *Metrics, so components can be built
// without instrumentation in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quotestream"

// Send failure reasons.
const (
	ReasonClosed     = "closed"
	ReasonBufferFull = "buffer_full"
	ReasonEncode     = "encode"
	ReasonWrite      = "write"
)

// Metrics holds the server's collectors.
type Metrics struct {
	reg prometheus.Gatherer

	connections        prometheus.Gauge
	subscribers        prometheus.Gauge
	ticks              prometheus.Counter
	quotesSent         prometheus.Counter
	sendFailures       *prometheus.CounterVec
	decodeErrors       *prometheus.CounterVec
	protocolViolations prometheus.Counter
	unknownUnsubscribe prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// to avoid duplicate registration panics on the default registerer.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open WebSocket connections",
		}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Number of connections in the subscriber registry",
		}),
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_ticks_total",
			Help:      "Broadcast ticks that produced a quote",
		}),
		quotesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_sent_total",
			Help:      "Quote messages handed to connections",
		}),
		sendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Messages that could not be delivered to a connection",
		}, []string{"reason"}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Client messages that could not be decoded",
		}, []string{"kind"}),
		protocolViolations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_violations_total",
			Help:      "Client messages received out of sequence",
		}),
		unknownUnsubscribe: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unsubscribe_not_found_total",
			Help:      "Unsubscribe requests naming an unknown identity",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

// SetSubscribers records the current registry size.
func (m *Metrics) SetSubscribers(n int) {
	if m != nil {
		m.subscribers.Set(float64(n))
	}
}

func (m *Metrics) Tick() {
	if m != nil {
		m.ticks.Inc()
	}
}

func (m *Metrics) QuoteSent() {
	if m != nil {
		m.quotesSent.Inc()
	}
}

// SendFailed counts one undelivered message under reason.
func (m *Metrics) SendFailed(reason string) {
	if m != nil {
		m.sendFailures.WithLabelValues(reason).Inc()
	}
}

// DecodeFailed counts one undecodable client message. kind is
// "unknown_type" or "malformed".
func (m *Metrics) DecodeFailed(kind string) {
	if m != nil {
		m.decodeErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ProtocolViolation() {
	if m != nil {
		m.protocolViolations.Inc()
	}
}

func (m *Metrics) UnsubscribeNotFound() {
	if m != nil {
		m.unknownUnsubscribe.Inc()
	}
}
