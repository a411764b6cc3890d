package morse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColonelBlimp/lightmorse/internal/dsp"
)

func on(ms int) dsp.FlashEvent {
	return dsp.FlashEvent{Polarity: dsp.On, Duration: time.Duration(ms) * time.Millisecond}
}

func off(ms int) dsp.FlashEvent {
	return dsp.FlashEvent{Polarity: dsp.Off, Duration: time.Duration(ms) * time.Millisecond}
}

func TestClassify_DotDashBoundary(t *testing.T) {
	th := DefaultThresholds()
	dotMax := int(th.DotMax / time.Millisecond)

	assert.Equal(t, Dot, Classify(on(dotMax-1), th))
	assert.Equal(t, Dash, Classify(on(dotMax), th))
	assert.Equal(t, Dot, Classify(on(1), th))
	assert.Equal(t, Dash, Classify(on(5000), th))
}

func TestClassify_GapBoundaries(t *testing.T) {
	th := DefaultThresholds()
	ms := func(d time.Duration) int { return int(d / time.Millisecond) }

	tests := []struct {
		name string
		gap  int
		want Symbol
	}{
		{"short", 100, IntraGap},
		{"just below letter", ms(th.LetterGapMin) - 1, IntraGap},
		{"letter min", ms(th.LetterGapMin), LetterGap},
		{"mid letter", 1200, LetterGap},
		{"word min", ms(th.WordGapMin), WordGap},
		{"long", 10000, WordGap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(off(tt.gap), th))
		})
	}
}

func TestClassify_AmbiguousBandIsLetterGap(t *testing.T) {
	th := DefaultThresholds()
	th.LetterGapMax = 1200 * time.Millisecond
	th.WordGapMin = 1600 * time.Millisecond

	assert.Equal(t, LetterGap, Classify(off(1200), th))
	assert.Equal(t, LetterGap, Classify(off(1599), th))
	assert.Equal(t, WordGap, Classify(off(1600), th))
}

func TestClassify_NegativeGapMagnitude(t *testing.T) {
	th := DefaultThresholds()
	ev := dsp.FlashEvent{Polarity: dsp.Off, Duration: -1200 * time.Millisecond}
	assert.Equal(t, LetterGap, Classify(ev, th))
}

func TestSymbol_String(t *testing.T) {
	assert.Equal(t, "dot", Dot.String())
	assert.Equal(t, "word-gap", WordGap.String())
	assert.Equal(t, "unknown", Symbol(42).String())
	assert.True(t, Dash.IsMark())
	assert.False(t, LetterGap.IsMark())
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())

	tests := []struct {
		name   string
		mutate func(*Thresholds)
		want   error
	}{
		{"delta", func(th *Thresholds) { th.DeltaThreshold = 0 }, ErrInvalidDeltaThreshold},
		{"dot max", func(th *Thresholds) { th.DotMax = 0 }, ErrInvalidDotMax},
		{"letter window", func(th *Thresholds) { th.LetterGapMax = th.LetterGapMin - 1 }, ErrInvalidLetterGap},
		{"word before letter max", func(th *Thresholds) { th.WordGapMin = th.LetterGapMax - 1 }, ErrInvalidWordGap},
		{"timeout", func(th *Thresholds) { th.InactivityTimeout = th.WordGapMin }, ErrInvalidInactivityTimeout},
		{"noise floor", func(th *Thresholds) { th.MinOff = -1 }, ErrInvalidNoiseFloor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.mutate(&th)
			assert.ErrorIs(t, th.Validate(), tt.want)
		})
	}
}

func TestTiming_Validate(t *testing.T) {
	assert.NoError(t, DefaultTiming().Validate())

	tm := DefaultTiming()
	tm.IntraGap = 0
	assert.ErrorIs(t, tm.Validate(), ErrInvalidTiming)

	tm = DefaultTiming()
	tm.Dash = tm.Dot
	assert.ErrorIs(t, tm.Validate(), ErrDashNotLonger)
}

func TestCheckTiming(t *testing.T) {
	assert.NoError(t, CheckTiming(DefaultTiming(), DefaultThresholds()))

	tests := []struct {
		name   string
		mutate func(*Timing, *Thresholds)
		want   string
	}{
		{"spacing on letter min", func(tm *Timing, th *Thresholds) { tm.LetterGap = th.LetterGapMin - tm.IntraGap }, "letter spacing"},
		{"spacing near word min", func(tm *Timing, th *Thresholds) { th.LetterGapMax, th.WordGapMin = 1500*time.Millisecond, 1500*time.Millisecond }, "letter spacing"},
		{"dot near dot max", func(tm *Timing, th *Thresholds) { tm.Dot = 330 * time.Millisecond }, "dot"},
		{"dash near dot max", func(tm *Timing, th *Thresholds) { tm.Dash = 360 * time.Millisecond }, "dash"},
		{"intra gap under noise floor", func(tm *Timing, th *Thresholds) { tm.IntraGap = th.MinOff }, "intra gap"},
		{"intra gap near letter min", func(tm *Timing, th *Thresholds) { tm.IntraGap = 950 * time.Millisecond }, "intra gap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm, th := DefaultTiming(), DefaultThresholds()
			tt.mutate(&tm, &th)
			err := CheckTiming(tm, th)
			require.ErrorIs(t, err, ErrTimingOnBoundary)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
