package receiver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/ColonelBlimp/lightmorse/internal/morse"
	"github.com/ColonelBlimp/lightmorse/internal/recovery"
	"github.com/ColonelBlimp/lightmorse/internal/sensor"
)

var (
	// ErrInvalidTick indicates the tick interval must be positive
	ErrInvalidTick = errors.New("tick interval must be positive")
	// ErrNilPipeline indicates a session needs a pipeline
	ErrNilPipeline = errors.New("pipeline is required")
)

// Result is one decoder output tagged with the session that produced it.
type Result struct {
	SessionID uuid.UUID
	morse.Output
}

// Handler receives results on the analysis goroutine. It should return
// quickly; frames arriving meanwhile are dropped.
type Handler func(Result)

// Stats is a snapshot of a session's counters.
type Stats struct {
	Published uint64 // frames offered by the source
	Dropped   uint64 // frames rejected because one was in flight
	PipelineStats
}

// Session runs a Pipeline on its own goroutine. Frames are handed over one
// at a time: while one is being analysed, newly published frames are
// dropped, never queued, so latency stays bounded by a single frame. A
// ticker feeds the same loop so inactivity flushes and frame-driven
// flushes are serialised.
type Session struct {
	id       uuid.UUID
	pipeline *Pipeline
	tick     time.Duration
	handler  Handler
	logger   *slog.Logger

	slot     chan sensor.Frame
	inFlight atomic.Bool
	clock    sensor.Clock // set when the source keeps its own timeline

	published atomic.Uint64
	dropped   atomic.Uint64

	mu       sync.Mutex
	snapshot PipelineStats
}

// NewSession creates a session around p. handler may be nil.
func NewSession(p *Pipeline, tick time.Duration, handler Handler) (*Session, error) {
	if p == nil {
		return nil, ErrNilPipeline
	}
	if tick <= 0 {
		return nil, ErrInvalidTick
	}
	if handler == nil {
		handler = func(Result) {}
	}
	return &Session{
		id:       uuid.New(),
		pipeline: p,
		tick:     tick,
		handler:  handler,
		logger:   slog.Default(),
		slot:     make(chan sensor.Frame, 1),
	}, nil
}

// SetLogger replaces the session logger.
func (s *Session) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l.With("session", s.id.String())
		s.pipeline.SetLogger(s.logger)
	}
}

// ID returns the session identifier
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Publish offers a frame to the analysis loop. It never blocks: when a
// frame is already in flight the new one is counted as dropped.
func (s *Session) Publish(f sensor.Frame) {
	s.published.Add(1)
	if !s.inFlight.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		return
	}
	s.slot <- f
}

// Run starts the analysis loop and src, and blocks until ctx is cancelled
// or src returns. A source that ends on its own is drained so the last
// letter is not lost. A panic in either goroutine is returned as an error.
// When src implements sensor.Clock, ticks are stamped from it instead of
// the wall clock.
func (s *Session) Run(ctx context.Context, src sensor.Source) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.clock, _ = src.(sensor.Clock)

	var srcErr error
	var wg conc.WaitGroup
	wg.Go(func() {
		s.loop(ctx)
	})
	wg.Go(func() {
		defer cancel()
		srcErr = src.Run(ctx, s.Publish)
	})

	if r := wg.WaitAndRecover(); r != nil {
		s.logger.Error("receive session panicked", "panic", r.Value, "stack", string(r.Stack))
		return r.AsError()
	}

	s.emit(s.pipeline.Drain())
	s.record()
	if errors.Is(srcErr, context.Canceled) || errors.Is(srcErr, context.DeadlineExceeded) {
		return nil
	}
	return srcErr
}

func (s *Session) loop(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// release a frame that raced with cancellation
			select {
			case f := <-s.slot:
				s.process(f)
			default:
			}
			return
		case f := <-s.slot:
			s.process(f)
		case now := <-ticker.C:
			if s.clock != nil {
				if now = s.clock.Now(); now.IsZero() {
					continue
				}
			}
			s.emit(s.pipeline.HandleTick(now))
			s.record()
		}
	}
}

func (s *Session) process(f sensor.Frame) {
	defer s.inFlight.Store(false)
	s.emit(s.pipeline.HandleFrame(f))
	s.record()
}

func (s *Session) emit(outs []morse.Output) {
	for _, out := range outs {
		s.logger.Info("decoded",
			"reason", out.Reason,
			"letter", letterString(out.Letter),
			"morse", out.Morse,
			"text", out.Text)
		s.deliver(Result{SessionID: s.id, Output: out})
	}
}

func letterString(r rune) string {
	if r == 0 {
		return ""
	}
	return string(r)
}

// deliver shields the loop from a misbehaving handler.
func (s *Session) deliver(r Result) {
	defer recovery.Contain(s.logger, "output handler")
	s.handler(r)
}

func (s *Session) record() {
	st := s.pipeline.Stats()
	s.mu.Lock()
	s.snapshot = st
	s.mu.Unlock()
}

// Stats returns a snapshot of the session counters. Safe to call from any
// goroutine.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Published:     s.published.Load(),
		Dropped:       s.dropped.Load(),
		PipelineStats: s.snapshot,
	}
}
