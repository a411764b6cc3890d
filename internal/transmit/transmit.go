// Package transmit plays text out as Morse on an actuator.
package transmit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ColonelBlimp/lightmorse/internal/actuator"
	"github.com/ColonelBlimp/lightmorse/internal/morse"
)

var (
	// ErrNilActuator indicates a transmitter needs an actuator
	ErrNilActuator = errors.New("actuator is required")
	// ErrNegativeLeadIn indicates the lead-in delay cannot be negative
	ErrNegativeLeadIn = errors.New("lead-in delay cannot be negative")
)

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Report summarises a finished transmission.
type Report struct {
	ID       uuid.UUID
	Text     string
	Morse    string
	Pulses   int // marks actually lit
	Failures int // actuator errors
	Started  time.Time
	Finished time.Time
	Canceled bool
}

// Transmission is one call to Transmit.
type Transmission struct {
	ID       uuid.UUID
	Text     string
	Schedule morse.Schedule

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	report Report
	err    error
}

// Wait blocks until the transmission has finished or been cancelled.
func (tx *Transmission) Wait() (Report, error) {
	<-tx.done
	return tx.report, tx.err
}

// Done is closed when the transmission goroutine has exited and the lamp is off.
func (tx *Transmission) Done() <-chan struct{} {
	return tx.done
}

// Cancel truncates the transmission. The lamp is switched off before Done closes.
func (tx *Transmission) Cancel() {
	tx.cancel()
}

// Transmitter owns an actuator and runs at most one schedule on it at a
// time. Starting a transmission cancels the one in flight.
type Transmitter struct {
	actuator actuator.Actuator
	timing   morse.Timing
	alphabet *morse.Alphabet
	leadIn   time.Duration
	sleeper  Sleeper
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	current *Transmission
}

// NewTransmitter creates a transmitter with no lead-in.
func NewTransmitter(act actuator.Actuator, timing morse.Timing, alphabet *morse.Alphabet) (*Transmitter, error) {
	if act == nil {
		return nil, ErrNilActuator
	}
	if alphabet == nil {
		return nil, morse.ErrNilAlphabet
	}
	if err := timing.Validate(); err != nil {
		return nil, fmt.Errorf("timing: %w", err)
	}
	return &Transmitter{
		actuator: act,
		timing:   timing,
		alphabet: alphabet,
		sleeper:  timerSleeper{},
		now:      time.Now,
		logger:   slog.Default(),
	}, nil
}

// SetLeadIn sets the dark pause before the first mark of every transmission.
func (t *Transmitter) SetLeadIn(d time.Duration) error {
	if d < 0 {
		return ErrNegativeLeadIn
	}
	t.leadIn = d
	return nil
}

// SetSleeper replaces the wait primitive; now is used to timestamp reports.
func (t *Transmitter) SetSleeper(s Sleeper, now func() time.Time) {
	if s != nil {
		t.sleeper = s
	}
	if now != nil {
		t.now = now
	}
}

func (t *Transmitter) SetLogger(l *slog.Logger) {
	if l != nil {
		t.logger = l
	}
}

// Transmit starts sending text and returns at once. Any transmission still
// running is cancelled; the new one starts only after it has exited and the
// lamp has been forced off.
func (t *Transmitter) Transmit(ctx context.Context, text string) *Transmission {
	sched := morse.Encode(text, t.timing, t.alphabet)
	txCtx, cancel := context.WithCancel(ctx)
	tx := &Transmission{
		ID:       uuid.New(),
		Text:     text,
		Schedule: sched,
		ctx:      txCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	tx.report = Report{ID: tx.ID, Text: text, Morse: t.alphabet.ToMorse(text)}

	t.mu.Lock()
	prev := t.current
	t.current = tx
	t.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	go t.run(tx, prev)
	return tx
}

// Busy reports whether a transmission is in flight
func (t *Transmitter) Busy() bool {
	t.mu.Lock()
	tx := t.current
	t.mu.Unlock()
	if tx == nil {
		return false
	}
	select {
	case <-tx.done:
		return false
	default:
		return true
	}
}

// Close cancels any transmission in flight and waits for the lamp to go off.
// The actuator itself is left open.
func (t *Transmitter) Close() error {
	t.mu.Lock()
	tx := t.current
	t.mu.Unlock()
	if tx != nil {
		tx.cancel()
		<-tx.done
	}
	return t.actuator.Off()
}

func (t *Transmitter) run(tx *Transmission, prev *Transmission) {
	defer close(tx.done)
	defer tx.cancel()
	if prev != nil {
		<-prev.done
	}

	log := t.logger.With("transmission", tx.ID.String())
	t.forceOff(log)
	tx.report.Started = t.now()
	log.Info("transmitting", "text", tx.Text, "morse", tx.report.Morse, "duration", tx.Schedule.Total())

	tx.err = t.play(tx, log)
	t.forceOff(log)
	tx.report.Finished = t.now()

	if tx.err != nil {
		tx.report.Canceled = true
		log.Info("transmission cancelled", "pulses", tx.report.Pulses)
		return
	}
	log.Info("transmission complete", "pulses", tx.report.Pulses, "failures", tx.report.Failures)
}

func (t *Transmitter) play(tx *Transmission, log *slog.Logger) error {
	if t.leadIn > 0 {
		if err := t.sleeper.Sleep(tx.ctx, t.leadIn); err != nil {
			return err
		}
	}

	for _, step := range tx.Schedule {
		if err := tx.ctx.Err(); err != nil {
			return err
		}
		if !step.On {
			if err := t.sleeper.Sleep(tx.ctx, step.Duration); err != nil {
				return err
			}
			continue
		}

		if err := t.actuator.On(); err != nil {
			tx.report.Failures++
			log.Warn("actuator on failed, skipping mark", "letter", string(step.Letter), "error", err)
			t.forceOff(log)
			continue
		}
		tx.report.Pulses++
		sleepErr := t.sleeper.Sleep(tx.ctx, step.Duration)
		if err := t.actuator.Off(); err != nil {
			tx.report.Failures++
			log.Warn("actuator off failed", "letter", string(step.Letter), "error", err)
		}
		if sleepErr != nil {
			return sleepErr
		}
	}
	return nil
}

func (t *Transmitter) forceOff(log *slog.Logger) {
	if err := t.actuator.Off(); err != nil {
		log.Warn("actuator off failed", "error", err)
	}
}
