// Package broadcast implements the periodic quote fan-out.
//
// On every tick the Scheduler takes a snapshot of the subscriber registry,
// draws one quote from its source and hands the same encoded message to every
// entry. A failed send is logged and counted for that entry only; the rest of
// the tick is unaffected. A send that reports registry.ErrConnClosed removes the
// entry from the registry, since the connection is already gone.
package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/quotestream/quotestream/pkg/protocol"
	"github.com/quotestream/quotestream/server/internal/metrics"
	"github.com/quotestream/quotestream/server/internal/quote"
	"github.com/quotestream/quotestream/server/internal/registry"
)

// DefaultInterval is the broadcast period used when none is configured.
const DefaultInterval = time.Second

// Result summarises one tick.
type Result struct {
	Attempts int
	Failures int
	Quote    protocol.Quote
}

// Scheduler pushes a fresh quote to every subscriber on a fixed period.
type Scheduler struct {
	reg     *registry.Registry
	src     quote.Source
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	interval time.Duration
	reset    chan struct{}
	running  bool
}

// New creates a Scheduler. A non-positive interval falls back to DefaultInterval.
func New(reg *registry.Registry, src quote.Source, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		reg:      reg,
		src:      src,
		metrics:  m,
		logger:   logger,
		interval: interval,
		reset:    make(chan struct{}, 1),
	}
}

// Interval returns the current broadcast period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the broadcast period. A running loop picks it up before
// its next tick. Non-positive values are ignored.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	changed := d != s.interval
	s.interval = d
	s.mu.Unlock()

	if changed {
		select {
		case s.reset <- struct{}{}:
		default:
		}
	}
}

// Running reports whether Run is currently active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.setRunning(true)
	defer s.setRunning(false)

	t := time.NewTicker(s.Interval())
	defer t.Stop()

	s.logger.Info("broadcast: scheduler started", "interval", s.Interval())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("broadcast: scheduler stopped")
			return
		case <-s.reset:
			d := s.Interval()
			t.Reset(d)
			s.logger.Info("broadcast: interval changed", "interval", d)
		case <-t.C:
			s.Tick()
		}
	}
}

// Tick performs one broadcast. With no subscribers it does nothing, not even
// draw a quote.
func (s *Scheduler) Tick() Result {
	targets := s.reg.Snapshot()
	if len(targets) == 0 {
		return Result{}
	}

	q := s.src.Next()
	res := Result{Quote: q}
	data, err := protocol.Encode(q)
	if err != nil {
		s.logger.Error("broadcast: encode quote", "err", err)
		s.metrics.SendFailed(metrics.ReasonEncode)
		return res
	}
	s.metrics.Tick()

	for _, e := range targets {
		res.Attempts++
		if err := e.Conn.Send(data); err != nil {
			res.Failures++
			s.sendFailed(e, err)
			continue
		}
		s.metrics.QuoteSent()
	}

	s.logger.Debug("broadcast: tick",
		"subscribers", len(targets),
		"failures", res.Failures,
		"price", q.CurrentPrice,
	)
	return res
}

func (s *Scheduler) sendFailed(e registry.Entry, err error) {
	if errors.Is(err, registry.ErrConnClosed) {
		s.metrics.SendFailed(metrics.ReasonClosed)
		if uerr := s.reg.Unsubscribe(e.ID); uerr == nil {
			s.metrics.SetSubscribers(s.reg.Len())
			s.logger.Info("broadcast: dropped closed subscriber", "connection_id", e.ID)
		}
		return
	}
	s.metrics.SendFailed(metrics.ReasonBufferFull)
	s.logger.Warn("broadcast: send failed", "connection_id", e.ID, "err", err)
}

func (s *Scheduler) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}
