package receiver

import (
	"errors"

	"github.com/ColonelBlimp/lightmorse/internal/dsp"
	"github.com/ColonelBlimp/lightmorse/internal/morse"
	"github.com/ColonelBlimp/lightmorse/internal/sensor"
)

// ErrNoEvents indicates a recording produced no confirmed transitions
var ErrNoEvents = errors.New("recording contains no flash events")

// CollectDurations runs level frames through an edge detector and returns
// every confirmed interval as a signed millisecond duration, for
// morse.SuggestThresholds. The final interval is confirmed as if the light
// held its last state past the noise floor.
func CollectDurations(frames []sensor.Frame, th morse.Thresholds) (morse.DurationLog, error) {
	detector, err := dsp.NewEdgeDetector(dsp.EdgeConfig{
		DeltaThreshold: th.DeltaThreshold,
		MinOn:          th.MinOn,
		MinOff:         th.MinOff,
	})
	if err != nil {
		return nil, err
	}

	var log morse.DurationLog
	var last sensor.Frame
	for _, f := range frames {
		if f.HasImage() {
			// image frames need an extractor; recordings hold levels
			continue
		}
		if ev, ok := detector.Observe(dsp.Sample{Value: f.Level, Timestamp: f.Timestamp, Err: f.Err}); ok {
			log = append(log, ev.SignedMillis())
		}
		last = f
	}
	if !last.Timestamp.IsZero() {
		if ev, ok := detector.Expire(last.Timestamp.Add(max(th.MinOn, th.MinOff))); ok {
			log = append(log, ev.SignedMillis())
		}
	}
	if len(log) == 0 {
		return nil, ErrNoEvents
	}
	return log, nil
}
