package sensor

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrBadRecord indicates a replay row that is not "timestamp_ms,value"
	ErrBadRecord = errors.New("replay record must be timestamp_ms,value")
	// ErrNotMonotonic indicates replay timestamps going backwards
	ErrNotMonotonic = errors.New("replay timestamps must not decrease")
)

// ReadCSV parses recorded readings, one "timestamp_ms,value" row per frame.
// Blank lines and lines starting with # are ignored, as is a leading header
// row whose first field is not a number. Timestamps are milliseconds
// relative to an arbitrary origin and become offsets from the Unix epoch.
func ReadCSV(r io.Reader) ([]Frame, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var frames []Frame
	var last int64
	for record := 1; ; record++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("replay record %d: %w", record, err)
		}
		if len(rec) != 2 {
			return nil, fmt.Errorf("replay record %d: %w", record, ErrBadRecord)
		}

		ms, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			if len(frames) == 0 && record == 1 {
				continue // header
			}
			return nil, fmt.Errorf("replay record %d: %w", record, ErrBadRecord)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("replay record %d: %w", record, ErrBadRecord)
		}
		if len(frames) > 0 && ms < last {
			return nil, fmt.Errorf("replay record %d: %w", record, ErrNotMonotonic)
		}
		last = ms

		frames = append(frames, Frame{
			Seq:       uint64(len(frames) + 1),
			Timestamp: time.UnixMilli(ms),
			Level:     v,
		})
	}
	return frames, nil
}

// LoadCSV reads a replay file from disk.
func LoadCSV(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// WriteCSV records frames in the format ReadCSV accepts. Frames that carry an
// error are written as comments so a recording keeps its gaps visible.
func WriteCSV(w io.Writer, frames []Frame) error {
	cw := csv.NewWriter(w)
	for _, f := range frames {
		if f.Err != nil {
			if _, err := fmt.Fprintf(w, "# %d error: %v\n", f.Timestamp.UnixMilli(), f.Err); err != nil {
				return err
			}
			continue
		}
		rec := []string{
			strconv.FormatInt(f.Timestamp.UnixMilli(), 10),
			strconv.FormatFloat(f.Level, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
		cw.Flush()
	}
	cw.Flush()
	return cw.Error()
}

// Replay is a Source that plays recorded frames back. With Speed 0 frames are
// published as fast as possible; otherwise the recorded spacing is honoured,
// divided by Speed. Replayed timestamps keep the recorded spacing, shifted to
// start now; Now reports the matching position on that timeline so timeouts
// are measured in recorded time at any speed.
type Replay struct {
	Frames []Frame
	Speed  float64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	started time.Time // wall time of the first frame
	last    time.Time // timestamp of the latest published frame
}

// NewReplay creates a paced replay source.
func NewReplay(frames []Frame, speed float64) *Replay {
	return &Replay{Frames: frames, Speed: speed, now: time.Now, sleep: sleepCtx}
}

// Run implements Source.
func (r *Replay) Run(ctx context.Context, publish PublishFunc) error {
	if len(r.Frames) == 0 {
		return nil
	}
	origin := r.Frames[0].Timestamp
	start := r.now()
	r.mu.Lock()
	r.started = start
	r.mu.Unlock()

	for _, f := range r.Frames {
		offset := f.Timestamp.Sub(origin)
		if r.Speed > 0 {
			due := start.Add(time.Duration(float64(offset) / r.Speed))
			if err := r.sleep(ctx, due.Sub(r.now())); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		f.Timestamp = start.Add(offset)
		r.mu.Lock()
		r.last = f.Timestamp
		r.mu.Unlock()
		publish(f)
	}
	return nil
}

// Now implements Clock. A paced replay advances Speed times faster than the
// wall clock; an unpaced one stands at its latest frame.
func (r *Replay) Now() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last.IsZero() {
		return time.Time{}
	}
	if r.Speed <= 0 {
		return r.last
	}
	elapsed := r.now().Sub(r.started)
	return r.started.Add(time.Duration(float64(elapsed) * r.Speed))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
