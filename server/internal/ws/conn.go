package ws

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quotestream/quotestream/pkg/protocol"
	"github.com/quotestream/quotestream/server/internal/metrics"
	"github.com/quotestream/quotestream/server/internal/registry"
)

// State is the lifecycle position of one server-side connection.
type State int

const (
	StateAccepted State = iota
	StateReady
	StateSubscribed
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateReady:
		return "ready"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) terminal() bool { return s == StateClosed || s == StateFailed }

// conn is one accepted WebSocket connection. It implements registry.Conn.
type conn struct {
	m   *Manager
	ws  *websocket.Conn
	log *slog.Logger

	// mu guards everything below. Holding it while enqueueing keeps the
	// handshake messages ahead of any broadcast.
	mu     sync.Mutex
	send   chan []byte
	closed bool
	state  State
	subID  int64
}

func newConn(m *Manager, ws *websocket.Conn, log *slog.Logger) *conn {
	return &conn{
		m:     m,
		ws:    ws,
		log:   log,
		send:  make(chan []byte, m.opts.SendBuffer),
		state: StateAccepted,
	}
}

// Send queues data for the write pump without blocking.
func (c *conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enqueueLocked(data)
}

func (c *conn) enqueueLocked(data []byte) error {
	if c.closed {
		return registry.ErrConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// sendLocked encodes env and queues it. Failures are reported, never fatal.
func (c *conn) sendLocked(env protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		c.m.metrics.SendFailed(metrics.ReasonEncode)
		c.log.Error("ws: encode failed", "type", env.Type(), "err", err)
		return
	}
	if err := c.enqueueLocked(data); err != nil {
		reason := metrics.ReasonBufferFull
		if errors.Is(err, registry.ErrConnClosed) {
			reason = metrics.ReasonClosed
		}
		c.m.metrics.SendFailed(reason)
		c.log.Warn("ws: send failed", "type", env.Type(), "err", err)
	}
}

// ready completes Accepted → Ready and greets the client.
func (c *conn) ready() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAccepted {
		return
	}
	c.state = StateReady
	c.sendLocked(protocol.Connected{})
	c.log.Info("ws: client connected")
}

// readPump reads until the transport fails and returns the error that ended it.
// Each message is handled before the next read, preserving arrival order.
func (c *conn) readPump() error {
	pongWait := c.m.opts.PongWait
	c.ws.SetReadLimit(c.m.opts.ReadLimit)
	c.ws.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		c.handle(data)
	}
}

// writePump drains the send queue onto the transport and keeps the connection
// alive with pings. It owns the transport's write side and closes it on exit.
func (c *conn) writePump() {
	ticker := time.NewTicker(c.m.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	writeTimeout := c.m.opts.WriteTimeout
	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				// Queue closed: everything queued before it has been written.
				c.ws.WriteMessage( //nolint:errcheck
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				)
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				c.m.metrics.SendFailed(metrics.ReasonWrite)
				c.log.Warn("ws: write failed", "err", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) handle(data []byte) {
	req, err := protocol.DecodeRequest(data)
	if err != nil {
		c.m.metrics.DecodeFailed(decodeKind(err))
		c.log.Warn("ws: dropped undecodable message", "err", err)
		return
	}

	switch r := req.(type) {
	case protocol.SubscribeRequest:
		c.subscribe(r)
	case protocol.UnsubscribeRequest:
		c.unsubscribe(r)
	}
}

func (c *conn) subscribe(r protocol.SubscribeRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReady {
		c.violation("subscribe", c.state)
		return
	}

	id := c.m.reg.Subscribe(c)
	c.subID = id
	c.state = StateSubscribed
	c.m.metrics.SetSubscribers(c.m.reg.Len())

	c.sendLocked(protocol.ConnectionAck{ConnectionID: id})
	c.sendLocked(c.m.src.Next())
	c.log.Info("ws: subscribed", "connection_id", id, "product", r.ProductID)
}

func (c *conn) unsubscribe(r protocol.UnsubscribeRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, ok := c.m.reg.Lookup(r.ConnectionID)
	if !ok {
		c.m.metrics.UnsubscribeNotFound()
		c.log.Warn("ws: unsubscribe ignored",
			"connection_id", r.ConnectionID, "err", registry.ErrNotFound)
		return
	}
	if c.state != StateSubscribed || target != registry.Conn(c) {
		c.violation("unsubscribe", c.state)
		return
	}

	if err := c.m.reg.Unsubscribe(r.ConnectionID); err != nil {
		c.log.Warn("ws: unsubscribe", "connection_id", r.ConnectionID, "err", err)
	}
	c.m.metrics.SetSubscribers(c.m.reg.Len())
	c.state = StateClosed
	c.closeQueueLocked()
	c.log.Info("ws: unsubscribed", "connection_id", r.ConnectionID)
}

// violation must be called with c.mu held.
func (c *conn) violation(request string, state State) {
	c.m.metrics.ProtocolViolation()
	c.log.Warn("ws: request ignored",
		"request", request, "state", state, "err", ErrProtocolViolation)
}

// teardown runs once the read side has failed. It leaves the registry first,
// then lets the write pump release the transport.
func (c *conn) teardown(readErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.leaveRegistryLocked()
	if !c.state.terminal() {
		if websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.state = StateClosed
			c.log.Info("ws: client disconnected")
		} else {
			c.state = StateFailed
			c.log.Warn("ws: connection failed", "err", readErr)
		}
	}
	c.closeQueueLocked()
}

// close is the server-initiated counterpart of teardown. With notify set the
// client is told via connect.failed before the close frame.
func (c *conn) close(notify bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.terminal() {
		return
	}
	if notify {
		c.sendLocked(protocol.Failed{})
	}
	c.leaveRegistryLocked()
	c.state = StateClosed
	c.closeQueueLocked()
}

func (c *conn) leaveRegistryLocked() {
	if c.state != StateSubscribed {
		return
	}
	if err := c.m.reg.Unsubscribe(c.subID); err == nil {
		c.m.metrics.SetSubscribers(c.m.reg.Len())
	}
}

func (c *conn) closeQueueLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
