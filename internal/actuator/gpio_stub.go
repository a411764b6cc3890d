//go:build !linux

package actuator

// GPIOConfig selects the output line driving the lamp.
type GPIOConfig struct {
	Chip      string
	Line      int
	ActiveLow bool
}

// GPIO is not available on non-Linux platforms.
type GPIO struct{}

// NewGPIO returns ErrUnsupported on non-Linux platforms.
func NewGPIO(GPIOConfig) (*GPIO, error) {
	return nil, ErrUnsupported
}

func (g *GPIO) On() error    { return ErrUnsupported }
func (g *GPIO) Off() error   { return ErrUnsupported }
func (g *GPIO) Close() error { return nil }
