package actuator

import (
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// ErrInvalidBaud indicates the serial baud rate must be positive
var ErrInvalidBaud = errors.New("serial baud rate must be positive")

// SerialConfig selects the port of a lamp controller.
type SerialConfig struct {
	// Port is the device path (from config: actuator_serial_port)
	Port string
	// Baud is the line speed (from config: serial_baud)
	Baud int
}

// Serial drives a lamp through a microcontroller that switches it on "1\n"
// and off on "0\n".
type Serial struct {
	w io.WriteCloser
}

// NewSerial wraps an already open writer.
func NewSerial(w io.WriteCloser) *Serial {
	return &Serial{w: w}
}

// OpenSerial opens the controller's port at 8N1.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Baud <= 0 {
		return nil, ErrInvalidBaud
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	return NewSerial(port), nil
}

func (s *Serial) On() error {
	return s.send("1\n")
}

func (s *Serial) Off() error {
	return s.send("0\n")
}

func (s *Serial) send(cmd string) error {
	if _, err := io.WriteString(s.w, cmd); err != nil {
		return fmt.Errorf("serial lamp: %w", err)
	}
	return nil
}

func (s *Serial) Close() error {
	offErr := s.Off()
	return errors.Join(offErr, s.w.Close())
}
