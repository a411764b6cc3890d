//go:build nocv

package camera

import (
	"context"
	"errors"
	"image"

	"github.com/ColonelBlimp/lightmorse/internal/brightness"
	"github.com/ColonelBlimp/lightmorse/internal/sensor"
)

// ErrUnavailable is returned by every camera operation in builds without OpenCV
var ErrUnavailable = errors.New("camera support not compiled in (built with -tags nocv)")

// Available reports whether this build can talk to a camera.
func Available() bool { return false }

type EnhancedExtractor struct {
	Ratio          int
	CLAHE          bool
	BrightFraction float64
}

func NewEnhancedExtractor(ratio int, clahe bool) (*EnhancedExtractor, error) {
	return nil, ErrUnavailable
}

func (e *EnhancedExtractor) Measure(image.Image) (brightness.Measurement, error) {
	return brightness.Measurement{}, ErrUnavailable
}

type SourceConfig struct {
	Device int
	FPS    float64
}

type Source struct{}

func NewSource(SourceConfig) *Source { return &Source{} }

func (s *Source) Run(context.Context, sensor.PublishFunc) error {
	return ErrUnavailable
}
