package morse

import (
	"errors"
	"fmt"
	"time"
)

// Default receive thresholds, tuned against the default Timing below.
const (
	DefaultDeltaThreshold    = 20.0
	DefaultDotMax            = 350 * time.Millisecond
	DefaultLetterGapMin      = 1000 * time.Millisecond
	DefaultLetterGapMax      = 1800 * time.Millisecond
	DefaultWordGapMin        = 1800 * time.Millisecond
	DefaultInactivityTimeout = 3000 * time.Millisecond
	// DefaultMinOn and DefaultMinOff are the debounce noise floors.
	DefaultMinOn  = 50 * time.Millisecond
	DefaultMinOff = 200 * time.Millisecond
)

// Default transmit timing.
const (
	DefaultDotDuration  = 200 * time.Millisecond
	DefaultDashDuration = 600 * time.Millisecond
	DefaultIntraGap     = 400 * time.Millisecond
	DefaultLetterGap    = 1000 * time.Millisecond
)

// BoundaryMargin is the fraction of a receive cutoff that an encoded duration
// must stay clear of. Frame quantisation at 30fps moves a measured edge by up
// to 33ms, and lamps switch with some latency of their own.
const BoundaryMargin = 0.1

var (
	// ErrInvalidDeltaThreshold indicates the brightness delta must be positive
	ErrInvalidDeltaThreshold = errors.New("delta brightness threshold must be positive")
	// ErrInvalidDotMax indicates the dot/dash boundary must be positive
	ErrInvalidDotMax = errors.New("dot max must be positive")
	// ErrInvalidLetterGap indicates the letter gap window is empty or negative
	ErrInvalidLetterGap = errors.New("letter gap min must be positive and below letter gap max")
	// ErrInvalidWordGap indicates the word gap starts before the letter gap window ends
	ErrInvalidWordGap = errors.New("word gap min must be at least letter gap max")
	// ErrInvalidInactivityTimeout indicates the timeout must exceed the word gap
	ErrInvalidInactivityTimeout = errors.New("inactivity timeout must be greater than word gap min")
	// ErrInvalidNoiseFloor indicates a debounce floor is negative
	ErrInvalidNoiseFloor = errors.New("noise floors must be non-negative")
	// ErrInvalidTiming indicates a transmit duration is not positive
	ErrInvalidTiming = errors.New("transmit durations must be positive")
	// ErrDashNotLonger indicates a dash would not be distinguishable from a dot
	ErrDashNotLonger = errors.New("dash duration must be longer than dot duration")
	// ErrTimingOnBoundary indicates an encoded duration would classify ambiguously
	ErrTimingOnBoundary = errors.New("transmit timing too close to a receive threshold")
)

// Thresholds holds the receive-side timing cutoffs. It is a value type:
// copy it into components at construction and never mutate it afterwards.
type Thresholds struct {
	// DeltaThreshold is the brightness change that counts as an edge
	DeltaThreshold float64
	// DotMax: ON shorter than this is a dot, otherwise a dash
	DotMax time.Duration
	// LetterGapMin: OFF at least this long ends a letter
	LetterGapMin time.Duration
	// LetterGapMax is the upper end of the nominal letter gap window
	LetterGapMax time.Duration
	// WordGapMin: OFF at least this long ends a word
	WordGapMin time.Duration
	// InactivityTimeout forces a flush when nothing arrives for this long
	InactivityTimeout time.Duration
	// MinOn and MinOff: states held for less are treated as sensor noise
	MinOn  time.Duration
	MinOff time.Duration
}

// DefaultThresholds returns the thresholds matching DefaultTiming.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DeltaThreshold:    DefaultDeltaThreshold,
		DotMax:            DefaultDotMax,
		LetterGapMin:      DefaultLetterGapMin,
		LetterGapMax:      DefaultLetterGapMax,
		WordGapMin:        DefaultWordGapMin,
		InactivityTimeout: DefaultInactivityTimeout,
		MinOn:             DefaultMinOn,
		MinOff:            DefaultMinOff,
	}
}

// Validate checks the thresholds are internally consistent.
func (t Thresholds) Validate() error {
	if t.DeltaThreshold <= 0 {
		return ErrInvalidDeltaThreshold
	}
	if t.DotMax <= 0 {
		return ErrInvalidDotMax
	}
	if t.LetterGapMin <= 0 || t.LetterGapMax < t.LetterGapMin {
		return ErrInvalidLetterGap
	}
	if t.WordGapMin < t.LetterGapMax {
		return ErrInvalidWordGap
	}
	if t.InactivityTimeout <= t.WordGapMin {
		return ErrInvalidInactivityTimeout
	}
	if t.MinOn < 0 || t.MinOff < 0 {
		return ErrInvalidNoiseFloor
	}
	return nil
}

// Timing holds the transmit-side durations.
type Timing struct {
	Dot      time.Duration
	Dash     time.Duration
	IntraGap time.Duration

	// LetterGap is the extra dark time after a letter's trailing intra gap
	LetterGap time.Duration
}

// DefaultTiming returns the 200/600/400/1000ms schedule.
func DefaultTiming() Timing {
	return Timing{
		Dot:       DefaultDotDuration,
		Dash:      DefaultDashDuration,
		IntraGap:  DefaultIntraGap,
		LetterGap: DefaultLetterGap,
	}
}

// Validate checks every duration is positive and a dash outlasts a dot.
func (t Timing) Validate() error {
	if t.Dot <= 0 || t.Dash <= 0 || t.IntraGap <= 0 || t.LetterGap <= 0 {
		return ErrInvalidTiming
	}
	if t.Dash <= t.Dot {
		return ErrDashNotLonger
	}
	return nil
}

// LetterSpacing is the dark time between the last mark of one letter and the
// first mark of the next.
func (t Timing) LetterSpacing() time.Duration {
	return t.IntraGap + t.LetterGap
}

// CheckTiming reports every duration Encode produces with tm that th would
// not classify as intended with BoundaryMargin to spare.
func CheckTiming(tm Timing, th Thresholds) error {
	windows := []struct {
		name   string
		d      time.Duration
		lo, hi time.Duration // hi 0 is unbounded
	}{
		{"dot", tm.Dot, th.MinOn, th.DotMax},
		{"dash", tm.Dash, th.DotMax, 0},
		{"intra gap", tm.IntraGap, th.MinOff, th.LetterGapMin},
		{"letter spacing", tm.LetterSpacing(), th.LetterGapMin, th.WordGapMin},
	}

	var errs []error
	for _, w := range windows {
		if w.lo > 0 && float64(w.d) < float64(w.lo)*(1+BoundaryMargin) {
			errs = append(errs, fmt.Errorf("%w: %s %v is too close to %v", ErrTimingOnBoundary, w.name, w.d, w.lo))
		}
		if w.hi > 0 && float64(w.d) > float64(w.hi)*(1-BoundaryMargin) {
			errs = append(errs, fmt.Errorf("%w: %s %v is too close to %v", ErrTimingOnBoundary, w.name, w.d, w.hi))
		}
	}
	return errors.Join(errs...)
}
