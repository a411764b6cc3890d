package morse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jittered records a schedule as signed ms with a small deterministic wobble.
func jittered(sched Schedule) DurationLog {
	wobble := []int64{-15, 0, 10, -5, 20, 5, -10}
	var log DurationLog
	for i, step := range sched {
		ms := step.Duration.Milliseconds() + wobble[i%len(wobble)]
		if !step.On {
			ms = -ms
		}
		log = append(log, ms)
	}
	return log
}

func TestSuggestThresholds_FromTransmitTiming(t *testing.T) {
	tm := DefaultTiming()
	log := jittered(Encode("PARIS PARIS", tm, Standard))

	cal, err := SuggestThresholds(log, DefaultThresholds())
	require.NoError(t, err)

	assert.InDelta(t, 200, cal.Dots.Mean, 25)
	assert.InDelta(t, 600, cal.Dashes.Mean, 25)
	assert.InDelta(t, 400, cal.IntraGaps.Mean, 25)
	assert.InDelta(t, 1400, cal.LetterGaps.Mean, 25)
	assert.Zero(t, cal.WordGaps.Count)

	s := cal.Suggested
	assert.InDelta(t, 400, float64(s.DotMax/time.Millisecond), 30)
	assert.InDelta(t, 900, float64(s.LetterGapMin/time.Millisecond), 30)
	assert.Greater(t, s.WordGapMin, s.LetterGapMin)
	assert.NoError(t, s.Validate())
}

func TestSuggestThresholds_DetectsWordGaps(t *testing.T) {
	var log DurationLog
	for i := 0; i < 6; i++ {
		log = append(log, 100, -100, 300, -300)
	}
	for i := 0; i < 4; i++ {
		log = append(log, 100, -700)
	}

	cal, err := SuggestThresholds(log, DefaultThresholds())
	require.NoError(t, err)

	assert.Equal(t, 4, cal.WordGaps.Count)
	assert.InDelta(t, 700, cal.WordGaps.Mean, 1)
	assert.Equal(t, 500*time.Millisecond, cal.Suggested.WordGapMin)
	assert.Equal(t, 200*time.Millisecond, cal.Suggested.LetterGapMin)
	assert.Equal(t, 200*time.Millisecond, cal.Suggested.DotMax)
}

func TestSuggestThresholds_NotEnoughData(t *testing.T) {
	_, err := SuggestThresholds(DurationLog{100, -100, 300}, DefaultThresholds())
	assert.ErrorIs(t, err, ErrNotEnoughMarks)

	_, err = SuggestThresholds(DurationLog{100, 100, 300, 300, -100}, DefaultThresholds())
	assert.ErrorIs(t, err, ErrNotEnoughGaps)
}
