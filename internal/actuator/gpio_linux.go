//go:build linux

package actuator

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOConfig selects the output line driving the lamp.
type GPIOConfig struct {
	// Chip is the character device name, e.g. gpiochip0 (from config: gpio_chip)
	Chip string
	// Line is the line offset on the chip, BCM numbering on a Pi (from config: gpio_line)
	Line int
	// ActiveLow inverts the line for drivers that sink current (from config: gpio_active_low)
	ActiveLow bool
}

// GPIO drives a lamp or LED through a Linux GPIO character device line.
type GPIO struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewGPIO requests the line as an output, initially off.
func NewGPIO(cfg GPIOConfig) (*GPIO, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip, gpiocdev.WithConsumer("lightmorse"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", cfg.Chip, err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := chip.RequestLine(cfg.Line, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request gpio line %d: %w", cfg.Line, err)
	}
	return &GPIO{chip: chip, line: line}, nil
}

func (g *GPIO) On() error {
	if err := g.line.SetValue(1); err != nil {
		return fmt.Errorf("gpio on: %w", err)
	}
	return nil
}

func (g *GPIO) Off() error {
	if err := g.line.SetValue(0); err != nil {
		return fmt.Errorf("gpio off: %w", err)
	}
	return nil
}

// Close switches the lamp off and returns the line to an input so the pin
// is left floating rather than driven after exit.
func (g *GPIO) Close() error {
	var errs []error
	if g.line != nil {
		if err := g.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("gpio off: %w", err))
		}
		if err := g.line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
		}
		if err := g.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
