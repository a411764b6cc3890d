// Package receiver runs the decode chain: frame, brightness, flash event,
// symbol, letter.
package receiver

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ColonelBlimp/lightmorse/internal/brightness"
	"github.com/ColonelBlimp/lightmorse/internal/dsp"
	"github.com/ColonelBlimp/lightmorse/internal/morse"
	"github.com/ColonelBlimp/lightmorse/internal/sensor"
)

// ErrNoExtractor indicates an image frame arrived at a pipeline built without an extractor
var ErrNoExtractor = errors.New("image frame but no brightness extractor configured")

// PipelineStats counts what the pipeline has seen.
type PipelineStats struct {
	Frames    uint64
	Anomalies uint64 // frames skipped as unmeasurable
	Discarded uint64 // transitions dropped as noise
	Events    uint64 // confirmed flash events
	Flushes   uint64 // outputs produced
}

// Pipeline owns the edge detector and assembler for one receive session.
// It is not safe for concurrent use; a Session serialises calls to it.
type Pipeline struct {
	thresholds morse.Thresholds
	extractor  brightness.Extractor
	detector   *dsp.EdgeDetector
	assembler  *morse.Assembler
	logger     *slog.Logger

	frames  uint64
	events  uint64
	flushes uint64
	last    time.Time
}

// NewPipeline builds a decode chain. extractor may be nil when every frame
// carries a Level.
func NewPipeline(th morse.Thresholds, extractor brightness.Extractor, alphabet *morse.Alphabet) (*Pipeline, error) {
	if err := th.Validate(); err != nil {
		return nil, fmt.Errorf("thresholds: %w", err)
	}
	detector, err := dsp.NewEdgeDetector(dsp.EdgeConfig{
		DeltaThreshold: th.DeltaThreshold,
		MinOn:          th.MinOn,
		MinOff:         th.MinOff,
	})
	if err != nil {
		return nil, err
	}
	assembler, err := morse.NewAssembler(alphabet, th.InactivityTimeout)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		thresholds: th,
		extractor:  extractor,
		detector:   detector,
		assembler:  assembler,
		logger:     slog.Default(),
	}, nil
}

// SetLogger replaces the logger for the pipeline and its detector.
func (p *Pipeline) SetLogger(l *slog.Logger) {
	if l != nil {
		p.logger = l
		p.detector.SetLogger(l)
	}
}

// HandleFrame measures one frame and advances the state machine.
func (p *Pipeline) HandleFrame(f sensor.Frame) []morse.Output {
	p.frames++
	sample := p.measure(f)
	if !sample.Timestamp.IsZero() {
		p.last = sample.Timestamp
	}
	ev, ok := p.detector.Observe(sample)
	if !ok {
		return nil
	}
	return p.apply(ev)
}

// HandleTick confirms transitions that have outlived their noise floor and
// drives the inactivity timeout.
func (p *Pipeline) HandleTick(now time.Time) []morse.Output {
	var outs []morse.Output
	if ev, ok := p.detector.Expire(now); ok {
		outs = p.apply(ev)
	}
	if out, ok := p.assembler.Apply(morse.TickEvent(now)); ok {
		p.flushed(out)
		outs = append(outs, out)
	}
	return outs
}

// Drain forces out everything still buffered as if the input had gone quiet
// after the last frame. Used when a finite source ends.
func (p *Pipeline) Drain() []morse.Output {
	quiet := p.last.Add(max(p.thresholds.MinOn, p.thresholds.MinOff))
	outs := p.HandleTick(quiet)
	return append(outs, p.HandleTick(quiet.Add(p.thresholds.InactivityTimeout))...)
}

// Replay runs recorded frames through the pipeline, synthesising a tick
// every interval of frame time, and drains at the end.
func (p *Pipeline) Replay(frames []sensor.Frame, interval time.Duration) []morse.Output {
	var outs []morse.Output
	var next time.Time
	for _, f := range frames {
		if interval > 0 && !f.Timestamp.IsZero() {
			if next.IsZero() {
				next = f.Timestamp.Add(interval)
			}
			for !next.After(f.Timestamp) {
				outs = append(outs, p.HandleTick(next)...)
				next = next.Add(interval)
			}
		}
		outs = append(outs, p.HandleFrame(f)...)
	}
	return append(outs, p.Drain()...)
}

func (p *Pipeline) measure(f sensor.Frame) dsp.Sample {
	s := dsp.Sample{Value: f.Level, Timestamp: f.Timestamp, Err: f.Err}
	if s.Err != nil || !f.HasImage() {
		return s
	}
	if p.extractor == nil {
		s.Err = ErrNoExtractor
		return s
	}
	m, err := p.extractor.Measure(f.Image)
	if err != nil {
		s.Err = fmt.Errorf("frame %d: %w", f.Seq, err)
		return s
	}
	s.Value = m.Value
	return s
}

func (p *Pipeline) apply(ev dsp.FlashEvent) []morse.Output {
	p.events++
	sym := morse.Classify(ev, p.thresholds)
	p.logger.Debug("symbol", "symbol", sym, "polarity", ev.Polarity, "duration_ms", ev.Duration.Milliseconds())

	out, ok := p.assembler.Apply(morse.SymbolEvent(sym, ev))
	if !ok {
		return nil
	}
	p.flushed(out)
	return []morse.Output{out}
}

func (p *Pipeline) flushed(out morse.Output) {
	p.flushes++
	if out.Letter != 0 {
		p.logger.Debug("letter timing", "letter", string(out.Letter), "durations_ms", []int64(out.Durations))
	}
}

// Text returns the cumulative decoded text
func (p *Pipeline) Text() string {
	return p.assembler.Text()
}

// State returns the assembler state
func (p *Pipeline) State() morse.State {
	return p.assembler.State()
}

// Stats returns a snapshot of the counters
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		Frames:    p.frames,
		Anomalies: p.detector.Anomalies(),
		Discarded: p.detector.Discarded(),
		Events:    p.events,
		Flushes:   p.flushes,
	}
}

// Thresholds returns the thresholds in use
func (p *Pipeline) Thresholds() morse.Thresholds {
	return p.thresholds
}

// Reset clears the detector and assembler for a fresh session.
func (p *Pipeline) Reset() {
	p.detector.Reset()
	p.assembler.Reset()
	p.last = time.Time{}
}
