// Package sensor delivers light readings to the receiver, one Frame per tick.
package sensor

import (
	"context"
	"errors"
	"image"
	"time"
)

var (
	// ErrNoReading indicates a frame carries neither an image nor a level
	ErrNoReading = errors.New("frame has no image and no level")
)

// Frame is one reading from a light sensor. Camera sources set Image and
// leave the brightness to the receiver's extractor; scalar sensors set Level
// directly on the same 0..255 scale. Err marks a frame the sensor failed to
// read; it still travels so the failure is counted and logged downstream.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Image     image.Image
	Level     float64
	Err       error
}

// HasImage reports whether the frame must be measured by an extractor.
func (f Frame) HasImage() bool {
	return f.Image != nil
}

// PublishFunc receives frames from a source. It must not block.
type PublishFunc func(Frame)

// Source produces frames until ctx is cancelled or the input is exhausted.
type Source interface {
	Run(ctx context.Context, publish PublishFunc) error
}

// Clock is implemented by sources whose frame timestamps run on a timeline
// of their own, such as a replay at other than real speed. Now returns the
// current time on that timeline, or the zero time before the first frame.
type Clock interface {
	Now() time.Time
}

// sequencer stamps frames with increasing sequence numbers.
type sequencer struct {
	next uint64
	now  func() time.Time
}

func newSequencer() *sequencer {
	return &sequencer{now: time.Now}
}

func (s *sequencer) level(v float64, err error) Frame {
	s.next++
	return Frame{Seq: s.next, Timestamp: s.now(), Level: v, Err: err}
}
