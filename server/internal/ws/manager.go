package ws

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quotestream/quotestream/pkg/protocol"
	"github.com/quotestream/quotestream/server/internal/metrics"
	"github.com/quotestream/quotestream/server/internal/quote"
	"github.com/quotestream/quotestream/server/internal/registry"
)

var (
	// ErrSendBufferFull is returned by a connection's Send when its outgoing
	// queue is full. The message is dropped; the connection stays up.
	ErrSendBufferFull = errors.New("ws: send buffer full")

	// ErrProtocolViolation marks a request that does not fit the connection's
	// current state.
	ErrProtocolViolation = errors.New("ws: protocol violation")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Options tunes every accepted connection.
type Options struct {
	// SendBuffer is the per-connection outgoing queue depth.
	SendBuffer int
	// WriteTimeout is the deadline for a single write.
	WriteTimeout time.Duration
	// PongWait is how long a connection may stay silent before it is treated as dead.
	// Pings go out every 9/10 of PongWait.
	PongWait time.Duration
	// ReadLimit is the maximum inbound message size in bytes.
	ReadLimit int64
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		SendBuffer:   16,
		WriteTimeout: 10 * time.Second,
		PongWait:     60 * time.Second,
		ReadLimit:    4096,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = d.ReadLimit
	}
	return o
}

// Manager accepts WebSocket connections and owns their transports.
type Manager struct {
	reg     *registry.Registry
	src     quote.Source
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	conns    map[*conn]struct{}
	shutdown bool
}

// New creates a Manager that registers subscribers in reg and draws initial
// quotes from src.
func New(reg *registry.Registry, src quote.Source, opts Options, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		reg:     reg,
		src:     src,
		opts:    opts.withDefaults(),
		metrics: m,
		logger:  logger,
		conns:   make(map[*conn]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		m.logger.Debug("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	tag := uuid.NewString()
	c := newConn(m, wsConn, m.logger.With("conn", tag, "remote", r.RemoteAddr))
	if !m.register(c) {
		wsConn.WriteControl( //nolint:errcheck
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		wsConn.Close()
		return
	}
	defer m.unregister(c)

	go c.writePump()
	c.ready()
	c.teardown(c.readPump())
}

// Count returns the number of open connections.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Shutdown tells every open connection the server is going away, closes them
// and drains the registry. Connections accepted afterwards are refused.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.shutdown = true
	targets := make([]*conn, 0, len(m.conns))
	for c := range m.conns {
		targets = append(targets, c)
	}
	m.mu.Unlock()

	for _, c := range targets {
		c.close(true)
	}
	if n := m.reg.Clear(); n > 0 {
		m.logger.Info("ws: registry drained", "subscribers", n)
	}
	m.metrics.SetSubscribers(0)
	m.logger.Info("ws: shutdown complete", "connections", len(targets))
}

// --- internal ---------------------------------------------------------------

func (m *Manager) register(c *conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return false
	}
	m.conns[c] = struct{}{}
	m.metrics.ConnectionOpened()
	return true
}

func (m *Manager) unregister(c *conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conns[c]; ok {
		delete(m.conns, c)
		m.metrics.ConnectionClosed()
	}
}

func decodeKind(err error) string {
	if errors.Is(err, protocol.ErrUnknownMessageType) {
		return "unknown_type"
	}
	return "malformed"
}
