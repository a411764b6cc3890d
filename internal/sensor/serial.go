package sensor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"go.bug.st/serial"
)

// ErrInvalidBaud indicates the serial baud rate must be positive
var ErrInvalidBaud = errors.New("serial baud rate must be positive")

// SerialConfig holds configuration for a serial photoresistor.
type SerialConfig struct {
	// Port is the device path, e.g. /dev/ttyUSB0 (from config: serial_port)
	Port string
	// Baud is the line speed (from config: serial_baud)
	Baud int
}

// LineSensor reads one brightness value per text line, the format a
// microcontroller printing analogRead() results produces. Values are taken
// as-is; the firmware is expected to scale them to 0..255.
type LineSensor struct {
	r      io.Reader
	closer io.Closer
	seq    *sequencer
	logger *slog.Logger
}

// NewLineSensor wraps any line-oriented reader, such as a serial port or a
// pipe from another process.
func NewLineSensor(r io.Reader) *LineSensor {
	s := &LineSensor{r: r, seq: newSequencer(), logger: slog.Default()}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenSerial opens a serial port at 8N1 and returns a sensor reading it.
func OpenSerial(cfg SerialConfig) (*LineSensor, error) {
	if cfg.Baud <= 0 {
		return nil, ErrInvalidBaud
	}
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	return NewLineSensor(port), nil
}

// Run implements Source. Unparseable lines are published as error frames.
func (s *LineSensor) Run(ctx context.Context, publish PublishFunc) error {
	// a blocked Read only returns when the port is closed
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	scan := bufio.NewScanner(s.r)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			err = fmt.Errorf("parse reading %q: %w", line, err)
		}
		publish(s.seq.level(v, err))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scan.Err(); err != nil {
		return fmt.Errorf("read serial: %w", err)
	}
	return nil
}

// Close releases the underlying port, if it can be closed.
func (s *LineSensor) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
