package actuator

import (
	"sync"
	"time"
)

// Command is one recorded actuator call.
type Command struct {
	On bool
	At time.Time
}

// Recorder is a test double that records every command with the time it was
// issued. Failures can be scripted per On call.
type Recorder struct {
	mu       sync.Mutex
	now      func() time.Time
	commands []Command
	onCalls  int
	closed   bool

	// FailOn maps the 1-based index of an On call to the error it returns
	FailOn map[int]error
	// OffError, if set, is returned by every Off
	OffError error
}

// NewRecorder creates a recorder stamping commands with now. A nil now uses
// time.Now.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now, FailOn: map[int]error{}}
}

func (r *Recorder) On() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCalls++
	if err := r.FailOn[r.onCalls]; err != nil {
		return err
	}
	r.commands = append(r.commands, Command{On: true, At: r.now()})
	return nil
}

func (r *Recorder) Off() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.OffError != nil {
		return r.OffError
	}
	r.commands = append(r.commands, Command{On: false, At: r.now()})
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.Off()
}

// Commands returns a copy of the recorded commands
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Closed reports whether Close was called
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// IsOn reports the state after the last successful command
func (r *Recorder) IsOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands) > 0 && r.commands[len(r.commands)-1].On
}

// Pulses returns the width of every ON, measured to the following OFF.
func (r *Recorder) Pulses() []time.Duration {
	cmds := r.Commands()
	var widths []time.Duration
	for i, c := range cmds {
		if !c.On {
			continue
		}
		for _, next := range cmds[i+1:] {
			if !next.On {
				widths = append(widths, next.At.Sub(c.At))
				break
			}
		}
	}
	return widths
}
