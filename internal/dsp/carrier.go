package dsp

import (
	"errors"
	"math"
)

var (
	// ErrInvalidBlockSize indicates block size must be positive
	ErrInvalidBlockSize = errors.New("block size must be positive")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidFrequency indicates the carrier must be positive and below Nyquist
	ErrInvalidFrequency = errors.New("carrier frequency must be positive and less than Nyquist frequency")
	// ErrShortBlock indicates fewer samples than one block were supplied
	ErrShortBlock = errors.New("insufficient samples for block size")
)

// FullScale is the brightness reported for a carrier at unit amplitude. It
// matches the 8-bit luminance range the camera path produces so the same
// delta threshold works for every sensor.
const FullScale = 255.0

// CarrierConfig holds configuration for the carrier filter.
type CarrierConfig struct {
	// Frequency is the modulation frequency of the light in Hz (from config: carrier_frequency)
	Frequency float64
	// SampleRate is the photodiode input sample rate in Hz (from config: sample_rate)
	SampleRate float64
	// BlockSize is the number of samples per level reading (from config: block_size)
	BlockSize int
}

// CarrierFilter measures how strongly a modulated light source is present in
// a photodiode signal. A lamp chopped at a known frequency shows up as a
// single DFT bin, which the Goertzel recurrence computes without an FFT and
// which ignores steady ambient light and mains flicker.
type CarrierFilter struct {
	config CarrierConfig
	coeff  float64 // 2*cos(omega)
	scale  float64 // 2/N, amplitude normalisation

	pending []float32
}

// NewCarrierFilter creates a carrier filter, validating the configuration.
func NewCarrierFilter(cfg CarrierConfig) (*CarrierFilter, error) {
	if cfg.BlockSize <= 0 {
		return nil, ErrInvalidBlockSize
	}
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.Frequency <= 0 || cfg.Frequency >= cfg.SampleRate/2 {
		return nil, ErrInvalidFrequency
	}

	omega := 2 * math.Pi * cfg.Frequency / cfg.SampleRate
	return &CarrierFilter{
		config:  cfg,
		coeff:   2 * math.Cos(omega),
		scale:   2 / float64(cfg.BlockSize),
		pending: make([]float32, 0, cfg.BlockSize),
	}, nil
}

// Level returns the carrier amplitude of one block on the brightness scale
// (0 to FullScale, clamped).
func (f *CarrierFilter) Level(block []float32) (float64, error) {
	if len(block) < f.config.BlockSize {
		return 0, ErrShortBlock
	}
	return f.level(block[:f.config.BlockSize]), nil
}

// Feed appends an arbitrary run of samples and returns a level for every
// block completed by it. Leftover samples are kept for the next call.
func (f *CarrierFilter) Feed(samples []float32) []float64 {
	var levels []float64
	n := f.config.BlockSize
	for len(samples) > 0 {
		take := min(n-len(f.pending), len(samples))
		f.pending = append(f.pending, samples[:take]...)
		samples = samples[take:]
		if len(f.pending) == n {
			levels = append(levels, f.level(f.pending))
			f.pending = f.pending[:0]
		}
	}
	return levels
}

func (f *CarrierFilter) level(block []float32) float64 {
	var s1, s2 float64
	for _, x := range block {
		s0 := float64(x) + f.coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - f.coeff*s1*s2
	if power < 0 {
		power = 0
	}
	return math.Min(math.Sqrt(power)*f.scale, 1) * FullScale
}

// BlockDuration returns the wall-clock span of one block in seconds.
func (f *CarrierFilter) BlockDuration() float64 {
	return float64(f.config.BlockSize) / f.config.SampleRate
}

// Config returns the current configuration
func (f *CarrierFilter) Config() CarrierConfig {
	return f.config
}
