// Package send wires an actuator and the transmitter for the transmit command.
package send

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ColonelBlimp/lightmorse/internal/actuator"
	"github.com/ColonelBlimp/lightmorse/internal/cli"
	"github.com/ColonelBlimp/lightmorse/internal/config"
	"github.com/ColonelBlimp/lightmorse/internal/morse"
	"github.com/ColonelBlimp/lightmorse/internal/transmit"
)

// ErrUnknownActuator indicates the configured actuator has no implementation
var ErrUnknownActuator = errors.New("unknown actuator")

// Option customises a Sender, mostly for tests.
type Option func(*Sender)

// WithActuator replaces the configured actuator. The sender still closes it.
func WithActuator(a actuator.Actuator) Option {
	return func(s *Sender) { s.actuator = a }
}

// WithOutputs replaces the outputs opened from configuration.
func WithOutputs(o cli.Outputs) Option {
	return func(s *Sender) {
		s.outputs = o
		s.outputsSet = true
	}
}

// WithSleeper makes the transmitter wait with sl and timestamp with now.
func WithSleeper(sl transmit.Sleeper, now func() time.Time) Option {
	return func(s *Sender) {
		s.sleeper = sl
		s.now = now
	}
}

// Sender plays text on the configured lamp and records what it sent.
type Sender struct {
	settings    config.Settings
	logger      *slog.Logger
	actuator    actuator.Actuator
	transmitter *transmit.Transmitter
	outputs     cli.Outputs
	outputsSet  bool
	sleeper     transmit.Sleeper
	now         func() time.Time
}

// NewSender opens the actuator and outputs named in s.
func NewSender(s config.Settings, opts ...Option) (*Sender, error) {
	snd := &Sender{settings: s, logger: slog.Default()}
	for _, opt := range opts {
		opt(snd)
	}

	if snd.actuator == nil {
		act, err := OpenActuator(s, snd.logger)
		if err != nil {
			return nil, err
		}
		snd.actuator = act
	}

	tr, err := transmit.NewTransmitter(snd.actuator, s.Timing(), morse.Standard)
	if err != nil {
		snd.actuator.Close()
		return nil, err
	}
	if err := tr.SetLeadIn(s.LeadIn()); err != nil {
		snd.actuator.Close()
		return nil, err
	}
	tr.SetSleeper(snd.sleeper, snd.now)
	tr.SetLogger(snd.logger)
	snd.transmitter = tr

	if !snd.outputsSet {
		if snd.outputs, err = cli.OpenOutputs(s); err != nil {
			snd.actuator.Close()
			return nil, err
		}
	}
	return snd, nil
}

// OpenActuator opens the lamp driver selected by the actuator setting.
func OpenActuator(s config.Settings, logger *slog.Logger) (actuator.Actuator, error) {
	switch s.Actuator {
	case "log":
		return actuator.NewLog(logger), nil
	case "gpio":
		return actuator.NewGPIO(actuator.GPIOConfig{
			Chip:      s.GPIOChip,
			Line:      s.GPIOLine,
			ActiveLow: s.GPIOActiveLow,
		})
	case "serial":
		return actuator.OpenSerial(actuator.SerialConfig{Port: s.ActuatorSerialPort, Baud: s.SerialBaud})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActuator, s.Actuator)
	}
}

// Send transmits text and blocks until it has been sent or ctx is cancelled.
// The report is recorded either way.
func (s *Sender) Send(ctx context.Context, text string) (transmit.Report, error) {
	if s.transmitter.Busy() {
		s.logger.Info("replacing transmission in flight")
	}
	report, err := s.transmitter.Transmit(ctx, text).Wait()
	s.record(report)
	return report, err
}

func (s *Sender) record(r transmit.Report) {
	if p := s.outputs.Publisher; p != nil {
		if err := p.PublishTransmission(r); err != nil {
			s.logger.Warn("mqtt publish failed", "error", err)
		}
	}
	if h := s.outputs.History; h != nil {
		if err := h.RecordTransmission(r); err != nil {
			s.logger.Warn("history write failed", "error", err)
		}
	}
}

// Close stops any transmission, switches the lamp off and releases everything.
func (s *Sender) Close() error {
	errs := []error{s.transmitter.Close(), s.actuator.Close()}
	if !s.outputsSet {
		errs = append(errs, s.outputs.Close())
	}
	return errors.Join(errs...)
}
