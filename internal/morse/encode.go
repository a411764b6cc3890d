package morse

import (
	"strings"
	"time"
)

// Step is one segment of an actuator schedule.
type Step struct {
	On       bool
	Duration time.Duration
	// Letter is the character this step belongs to
	Letter rune
}

// Schedule is an ordered list of ON/OFF steps.
type Schedule []Step

// Pulses returns the ON durations in order.
func (s Schedule) Pulses() []time.Duration {
	var out []time.Duration
	for _, step := range s {
		if step.On {
			out = append(out, step.Duration)
		}
	}
	return out
}

// Total returns the wall-clock length of the schedule.
func (s Schedule) Total() time.Duration {
	var total time.Duration
	for _, step := range s {
		total += step.Duration
	}
	return total
}

// Encode builds the actuator schedule for text. Input is uppercased and
// unsupported characters are skipped. Within a letter every mark is followed
// by the intra-symbol gap; after a letter's last mark the letter gap is added
// to it, giving one OFF step of Timing.LetterSpacing. The schedule ends on an
// intra-symbol gap so back-to-back schedules stay separated.
func Encode(text string, timing Timing, alphabet *Alphabet) Schedule {
	var codes []string
	var letters []rune
	for _, r := range strings.ToUpper(text) {
		code, ok := alphabet.Code(r)
		if !ok {
			continue
		}
		codes = append(codes, code)
		letters = append(letters, r)
	}

	var sched Schedule
	for i, code := range codes {
		for j := 0; j < len(code); j++ {
			on := timing.Dot
			if code[j] == '-' {
				on = timing.Dash
			}
			sched = append(sched, Step{On: true, Duration: on, Letter: letters[i]})

			gap := timing.IntraGap
			if j == len(code)-1 && i < len(codes)-1 {
				gap = timing.LetterSpacing()
			}
			sched = append(sched, Step{On: false, Duration: gap, Letter: letters[i]})
		}
	}
	return sched
}
