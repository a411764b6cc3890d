// Package dsp turns raw brightness readings into timed flash events.
package dsp

import (
	"errors"
	"log/slog"
	"math"
	"time"
)

var (
	// ErrInvalidDelta indicates the edge delta threshold must be positive
	ErrInvalidDelta = errors.New("delta threshold must be positive")
	// ErrInvalidNoiseFloor indicates a debounce floor is negative
	ErrInvalidNoiseFloor = errors.New("noise floor must be non-negative")
	// ErrBadReading marks a sample whose value is NaN or infinite
	ErrBadReading = errors.New("brightness reading is not a finite number")
)

// Polarity is the state of the light during a flash event.
type Polarity int

const (
	Off Polarity = iota
	On
)

func (p Polarity) String() string {
	if p == On {
		return "ON"
	}
	return "OFF"
}

func polarityOf(on bool) Polarity {
	if on {
		return On
	}
	return Off
}

// Sample is one brightness measurement. Err is set when the frame could not
// be measured; such samples are skipped.
type Sample struct {
	Value     float64
	Timestamp time.Time
	Err       error
}

// FlashEvent is a completed ON or OFF interval.
type FlashEvent struct {
	Polarity Polarity
	// Duration is the length of the interval
	Duration time.Duration
	// At is the edge that ended the interval
	At time.Time
}

// SignedMillis returns the duration in ms, negative for OFF intervals.
func (e FlashEvent) SignedMillis() int64 {
	ms := e.Duration.Milliseconds()
	if e.Polarity == Off {
		return -ms
	}
	return ms
}

// EdgeConfig holds configuration for the edge detector.
type EdgeConfig struct {
	// DeltaThreshold is the brightness change between consecutive samples
	// that counts as an edge (from config: delta_brightness_threshold)
	DeltaThreshold float64
	// MinOn is how long a rise must hold before it is believed (from config: min_on_ms)
	MinOn time.Duration
	// MinOff is how long a fall must hold before it is believed (from config: min_off_ms)
	MinOff time.Duration
}

// EdgeDetector finds rising and falling brightness edges and reports the
// interval each confirmed edge closes.
//
// A new state is only confirmed once it has been held for its noise floor.
// A reversing edge inside that window discards the transition without
// touching the last valid transition time, so the glitch folds back into the
// surrounding interval and two events of the same polarity never follow each
// other.
type EdgeDetector struct {
	config EdgeConfig
	logger *slog.Logger

	primed   bool
	previous float64

	isOn           bool
	armed          bool // lastTransition is meaningful
	lastTransition time.Time

	pending   bool
	pendingAt time.Time

	anomalies uint64
	discarded uint64
}

// NewEdgeDetector creates an edge detector with the given configuration.
func NewEdgeDetector(cfg EdgeConfig) (*EdgeDetector, error) {
	if cfg.DeltaThreshold <= 0 || math.IsNaN(cfg.DeltaThreshold) {
		return nil, ErrInvalidDelta
	}
	if cfg.MinOn < 0 || cfg.MinOff < 0 {
		return nil, ErrInvalidNoiseFloor
	}
	return &EdgeDetector{
		config: cfg,
		logger: slog.Default(),
	}, nil
}

// SetLogger replaces the logger used for anomalies and debug traces.
func (d *EdgeDetector) SetLogger(l *slog.Logger) {
	if l != nil {
		d.logger = l
	}
}

// Observe feeds one sample and returns the interval closed by a newly
// confirmed edge, if any.
func (d *EdgeDetector) Observe(s Sample) (FlashEvent, bool) {
	if err := checkSample(s); err != nil {
		d.anomalies++
		d.logger.Warn("skipping brightness sample", "error", err, "timestamp", s.Timestamp)
		return FlashEvent{}, false
	}

	if !d.primed {
		d.previous = s.Value
		d.primed = true
		return FlashEvent{}, false
	}

	ev, ok := d.Expire(s.Timestamp)

	delta := s.Value - d.previous
	d.previous = s.Value
	if math.Abs(delta) <= d.config.DeltaThreshold {
		return ev, ok
	}

	rising := delta > 0
	if d.pending {
		// pending target is !isOn; an edge back towards isOn cancels it
		if rising == d.isOn {
			d.pending = false
			d.discarded++
			d.logger.Debug("discarded transition below noise floor",
				"to", polarityOf(!d.isOn), "held", s.Timestamp.Sub(d.pendingAt))
		}
		return ev, ok
	}

	if rising != d.isOn {
		d.pending = true
		d.pendingAt = s.Timestamp
	}
	return ev, ok
}

// Expire confirms a pending transition whose noise floor has elapsed by now.
// Observe calls it on every sample; callers may also call it on idle ticks
// so a stalled sensor does not hold back the last event.
func (d *EdgeDetector) Expire(now time.Time) (FlashEvent, bool) {
	if !d.pending || now.Sub(d.pendingAt) < d.floor(!d.isOn) {
		return FlashEvent{}, false
	}

	edge := d.pendingAt
	wasOn := d.isOn
	d.pending = false
	d.isOn = !d.isOn

	if !d.armed {
		d.armed = true
		d.lastTransition = edge
		return FlashEvent{}, false
	}

	ev := FlashEvent{
		Polarity: polarityOf(wasOn),
		Duration: edge.Sub(d.lastTransition),
		At:       edge,
	}
	d.lastTransition = edge
	d.logger.Debug("flash event", "polarity", ev.Polarity, "duration_ms", ev.Duration.Milliseconds())
	return ev, true
}

func (d *EdgeDetector) floor(on bool) time.Duration {
	if on {
		return d.config.MinOn
	}
	return d.config.MinOff
}

func checkSample(s Sample) error {
	if s.Err != nil {
		return s.Err
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return ErrBadReading
	}
	return nil
}

// IsOn returns the confirmed light state
func (d *EdgeDetector) IsOn() bool {
	return d.isOn
}

// Anomalies returns how many samples were skipped as unmeasurable
func (d *EdgeDetector) Anomalies() uint64 {
	return d.anomalies
}

// Discarded returns how many transitions were dropped as noise
func (d *EdgeDetector) Discarded() uint64 {
	return d.discarded
}

// Reset returns the detector to its initial state
func (d *EdgeDetector) Reset() {
	d.primed = false
	d.previous = 0
	d.isOn = false
	d.armed = false
	d.lastTransition = time.Time{}
	d.pending = false
	d.pendingAt = time.Time{}
}

// Config returns the current configuration
func (d *EdgeDetector) Config() EdgeConfig {
	return d.config
}
