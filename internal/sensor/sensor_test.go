package sensor

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColonelBlimp/lightmorse/internal/dsp"
)

type collector struct {
	mu     sync.Mutex
	frames []Frame
}

func (c *collector) publish(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
}

func TestReadCSV(t *testing.T) {
	in := `timestamp_ms,value
# lamp warm-up
0,12.5
10, 13

20,200
`
	frames, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, uint64(1), frames[0].Seq)
	assert.Equal(t, 12.5, frames[0].Level)
	assert.Equal(t, 200.0, frames[2].Level)
	assert.Equal(t, 20*time.Millisecond, frames[2].Timestamp.Sub(frames[0].Timestamp))
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"one field", "0\n", ErrBadRecord},
		{"bad value", "0,bright\n", ErrBadRecord},
		{"bad timestamp after data", "0,1\nlater,2\n", ErrBadRecord},
		{"backwards", "10,1\n5,2\n", ErrNotMonotonic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	frames := []Frame{
		{Timestamp: time.UnixMilli(100), Level: 10},
		{Timestamp: time.UnixMilli(110), Err: errors.New("dropped")},
		{Timestamp: time.UnixMilli(120), Level: 190.25},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, frames))
	assert.Contains(t, buf.String(), "# 110 error: dropped")

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, 190.25, back[1].Level)
	assert.Equal(t, int64(120), back[1].Timestamp.UnixMilli())
}

func TestReplay_FastRebasesTimestamps(t *testing.T) {
	frames, err := ReadCSV(strings.NewReader("1000,1\n1010,2\n1050,3\n"))
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewReplay(frames, 0)
	r.now = func() time.Time { return start }

	var c collector
	require.NoError(t, r.Run(context.Background(), c.publish))
	require.Len(t, c.frames, 3)
	assert.Equal(t, start, c.frames[0].Timestamp)
	assert.Equal(t, start.Add(50*time.Millisecond), c.frames[2].Timestamp)
}

func TestReplay_PacedSleepsBetweenFrames(t *testing.T) {
	frames, err := ReadCSV(strings.NewReader("0,1\n100,2\n300,3\n"))
	require.NoError(t, err)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var slept []time.Duration
	r := NewReplay(frames, 2)
	r.now = func() time.Time { return clock }
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock = clock.Add(d)
		return nil
	}

	var c collector
	require.NoError(t, r.Run(context.Background(), c.publish))
	assert.Equal(t, []time.Duration{0, 50 * time.Millisecond, 100 * time.Millisecond}, slept)
}

func TestReplay_ClockFollowsRecordedTime(t *testing.T) {
	for _, speed := range []float64{0, 0.5, 1, 2} {
		frames, err := ReadCSV(strings.NewReader("0,1\n100,2\n300,3\n"))
		require.NoError(t, err)

		clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		r := NewReplay(frames, speed)
		r.now = func() time.Time { return clock }
		r.sleep = func(_ context.Context, d time.Duration) error {
			clock = clock.Add(d)
			return nil
		}
		assert.True(t, r.Now().IsZero(), "speed %v: clock before the first frame", speed)

		var at []time.Time
		var stamped []time.Time
		require.NoError(t, r.Run(context.Background(), func(f Frame) {
			stamped = append(stamped, f.Timestamp)
			at = append(at, r.Now())
		}))
		assert.Equal(t, stamped, at, "speed %v", speed)
	}
}

func TestReplay_StopsOnCancel(t *testing.T) {
	frames, err := ReadCSV(strings.NewReader("0,1\n10,2\n"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var c collector
	err = NewReplay(frames, 0).Run(ctx, c.publish)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.frames)
}

func TestLineSensor_ParsesReadings(t *testing.T) {
	s := NewLineSensor(strings.NewReader("12\n\n 240.5 \noops\n7\n"))
	var c collector
	require.NoError(t, s.Run(context.Background(), c.publish))

	require.Len(t, c.frames, 4)
	assert.Equal(t, 12.0, c.frames[0].Level)
	assert.Equal(t, 240.5, c.frames[1].Level)
	assert.Error(t, c.frames[2].Err)
	assert.Equal(t, 7.0, c.frames[3].Level)
	for i, f := range c.frames {
		assert.Equal(t, uint64(i+1), f.Seq)
	}
}

type closingPipe struct {
	*io.PipeReader
}

func TestLineSensor_CancelClosesPort(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	s := NewLineSensor(closingPipe{pr})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(Frame) {})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestOpenSerial_InvalidBaud(t *testing.T) {
	_, err := OpenSerial(SerialConfig{Port: "/dev/null", Baud: 0})
	assert.ErrorIs(t, err, ErrInvalidBaud)
}

func f32Bytes(samples []float32) []byte {
	out := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

func TestBytesToFloat32(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, -0.25}
	assert.Equal(t, in, bytesToFloat32(f32Bytes(in)))
	assert.Empty(t, bytesToFloat32([]byte{1, 2, 3}))
}

func TestAudioSensor_ProcessPublishesCarrierLevels(t *testing.T) {
	cfg := DefaultAudioConfig()
	a, err := NewAudioSensor(cfg)
	require.NoError(t, err)
	a.start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tone := make([]float32, cfg.BlockSize*2)
	for i := range tone {
		tone[i] = float32(0.5 * math.Sin(2*math.Pi*cfg.CarrierFrequency*float64(i)/float64(cfg.SampleRate)))
	}
	silence := make([]float32, cfg.BlockSize)

	var c collector
	a.process(f32Bytes(tone), c.publish)
	a.process(f32Bytes(silence), c.publish)
	a.process(nil, c.publish)

	require.Len(t, c.frames, 3)
	assert.InDelta(t, dsp.FullScale/2, c.frames[0].Level, 10)
	assert.InDelta(t, dsp.FullScale/2, c.frames[1].Level, 10)
	assert.InDelta(t, 0, c.frames[2].Level, 1)
	assert.Equal(t, a.start.Add(30*time.Millisecond), c.frames[2].Timestamp)
}

func TestAudioSensor_RequiresInit(t *testing.T) {
	a, err := NewAudioSensor(DefaultAudioConfig())
	require.NoError(t, err)
	assert.ErrorIs(t, a.Run(context.Background(), func(Frame) {}), ErrNotInitialized)
	_, err = a.ListDevices()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, a.Close())
}

func TestNewAudioSensor_InvalidCarrier(t *testing.T) {
	cfg := DefaultAudioConfig()
	cfg.CarrierFrequency = float64(cfg.SampleRate)
	_, err := NewAudioSensor(cfg)
	assert.ErrorIs(t, err, dsp.ErrInvalidFrequency)
}

func TestFrame_HasImage(t *testing.T) {
	assert.False(t, Frame{Level: 3}.HasImage())
}
