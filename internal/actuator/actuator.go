// Package actuator drives the lamp that carries outgoing Morse. The real
// drivers talk to GPIO or a serial-attached controller; Recorder stands in
// for hardware in tests.
package actuator

import (
	"errors"
	"log/slog"
)

// ErrUnsupported indicates a driver that is not available on this platform
var ErrUnsupported = errors.New("actuator not supported on this platform")

// Actuator switches a light source.
type Actuator interface {
	On() error
	Off() error
	// Close switches the light off and releases the device.
	Close() error
}

// Log is an actuator with no hardware: every command is logged. Useful for
// dry runs of a transmission.
type Log struct {
	logger *slog.Logger
	on     bool
}

// NewLog creates a logging actuator. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) On() error {
	l.on = true
	l.logger.Info("lamp", "state", "ON")
	return nil
}

func (l *Log) Off() error {
	if l.on {
		l.logger.Info("lamp", "state", "OFF")
	}
	l.on = false
	return nil
}

func (l *Log) Close() error {
	return l.Off()
}
