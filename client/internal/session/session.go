package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quotestream/quotestream/pkg/protocol"
)

// Session is one client connection to a quotestream server.
type Session struct {
	cfg    Config
	logger *slog.Logger

	updates     chan Update
	updatesOnce sync.Once
	done        chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	conn       *websocket.Conn
	state      State
	connID     int64
	hasID      bool
	closed     bool
	lastPingAt time.Time
}

// New creates a Session. Nothing is dialled until Connect.
func New(cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &Session{
		cfg:     cfg,
		logger:  logger.With("url", cfg.URL, "product", cfg.ProductID),
		updates: make(chan Update, cfg.BufferSize),
		done:    make(chan struct{}),
		state:   StateDisconnected,
	}
}

// Connect dials the server and starts the receive loop. A Session connects at
// most once.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.RLock()
	closed, dialled := s.closed, s.conn != nil
	s.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}
	if dialled {
		return ErrAlreadyConnected
	}

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("session: dial %s: %w", s.cfg.URL, err)
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	case s.conn != nil:
		s.mu.Unlock()
		conn.Close()
		return ErrAlreadyConnected
	}
	s.conn = conn
	s.state = StateConnecting
	s.lastPingAt = time.Now()
	s.mu.Unlock()

	// Server sends ping, we respond with pong.
	conn.SetPingHandler(func(data string) error {
		s.mu.Lock()
		s.lastPingAt = time.Now()
		s.mu.Unlock()

		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	go s.readLoop(conn)

	s.logger.Debug("session: connected")
	return nil
}

// Close terminates the connection and the receive loop. It is safe to call
// more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.state = StateClosed
	conn := s.conn
	s.mu.Unlock()

	close(s.done)

	if conn == nil {
		// No receive loop will ever run to close the stream.
		s.closeUpdates()
		return nil
	}
	conn.WriteControl( //nolint:errcheck
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

// Updates returns the stream of surfaced values. It is closed when the receive
// loop ends, or by Close if the session never connected.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Unsubscribe asks the server to drop this session's subscription. The server
// closes the connection in response.
func (s *Session) Unsubscribe() error {
	s.mu.RLock()
	id, ok := s.connID, s.hasID
	s.mu.RUnlock()
	if !ok {
		return ErrNotSubscribed
	}

	data, err := protocol.EncodeRequest(protocol.UnsubscribeRequest{ConnectionID: id})
	if err != nil {
		return err
	}
	return s.send(data)
}

// State returns the current handshake state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ConnectionID returns the identity assigned by the server, if any.
func (s *Session) ConnectionID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connID, s.hasID
}

// LastPing returns when the server last pinged this session.
func (s *Session) LastPing() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPingAt
}

// readLoop reads until the transport fails or the session is closed. Each
// message is handled before the next read.
func (s *Session) readLoop(conn *websocket.Conn) {
	defer s.closeUpdates()

	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Ignore errors after Close() is called
			if s.isClosed() {
				return
			}
			s.logger.Warn("session: connection lost", "err", err)
			s.fail(fmt.Errorf("session: read: %w", err), receivedAt)
			return
		}

		s.handle(data, receivedAt)
	}
}

func (s *Session) handle(data []byte, at time.Time) {
	env, err := protocol.Decode(data)
	if err != nil {
		s.logger.Warn("session: dropped undecodable message", "err", err)
		s.fail(err, at)
		return
	}

	switch m := env.(type) {
	case protocol.Connected:
		s.subscribe(at)

	case protocol.ConnectionAck:
		s.mu.Lock()
		s.connID = m.ConnectionID
		s.hasID = true
		if !s.closed {
			s.state = StateSubscribed
		}
		s.mu.Unlock()
		s.logger.Info("session: subscribed", "connection_id", m.ConnectionID)

	case protocol.Quote:
		s.emit(Update{Price: m.CurrentPrice, SecurityID: m.SecurityID, ReceivedAt: at})

	case protocol.Failed:
		s.logger.Warn("session: server reported failure")
		s.fail(ErrServerFailed, at)
	}
}

func (s *Session) subscribe(at time.Time) {
	data, err := protocol.EncodeRequest(protocol.SubscribeRequest{ProductID: s.cfg.ProductID})
	if err == nil {
		s.setState(StateAwaitingHandshake)
		err = s.send(data)
	}
	if err != nil {
		s.logger.Warn("session: subscribe failed", "err", err)
		s.fail(fmt.Errorf("session: subscribe: %w", err), at)
	}
}

func (s *Session) send(data []byte) error {
	s.mu.RLock()
	conn, closed := s.conn, s.closed
	s.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)) //nolint:errcheck
	return conn.WriteMessage(websocket.TextMessage, data)
}

// fail surfaces an absent value and drops back to Disconnected.
func (s *Session) fail(err error, at time.Time) {
	s.setState(StateDisconnected)
	s.emit(Update{Err: err, ReceivedAt: at})
}

func (s *Session) emit(u Update) {
	select {
	case s.updates <- u:
	case <-s.done:
	default:
		s.logger.Warn("session: update buffer full, dropping update")
	}
}

// setState is a no-op once the session is closed.
func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.state = st
	}
}

func (s *Session) closeUpdates() {
	s.updatesOnce.Do(func() { close(s.updates) })
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
