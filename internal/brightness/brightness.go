// Package brightness reduces a camera frame to a single brightness reading.
package brightness

import (
	"errors"
	"image"
	"image/color"
)

var (
	// ErrEmptyFrame indicates a nil or zero-sized frame
	ErrEmptyFrame = errors.New("frame is empty")
	// ErrInvalidRatio indicates the ROI ratio must be at least 1
	ErrInvalidRatio = errors.New("roi ratio must be >= 1")
	// ErrInvalidBrightFraction indicates the bright-pixel fraction is outside (0,1]
	ErrInvalidBrightFraction = errors.New("bright fraction must be in (0, 1]")
)

const (
	// DefaultROIRatio takes a centre square of side min(w,h)/2.
	DefaultROIRatio = 2
	// DefaultBrightFraction keeps pixels brighter than 70% of the ROI maximum.
	DefaultBrightFraction = 0.7
)

// Measurement is the brightness of one frame, on the 0..255 luminance scale.
type Measurement struct {
	Value  float64
	Region image.Rectangle
}

// Extractor turns a frame into a brightness measurement.
type Extractor interface {
	Measure(frame image.Image) (Measurement, error)
}

// ROIExtractor measures the mean of the brightest pixels inside a centred
// square. Averaging only the bright pixels keeps a small lamp from being
// washed out by the dark background around it.
type ROIExtractor struct {
	// Ratio divides the shorter frame side to give the ROI side (from config: roi_ratio)
	Ratio int
	// BrightFraction is the share of the ROI maximum a pixel must exceed
	BrightFraction float64
}

// NewROIExtractor creates an extractor with the given ROI ratio and the
// default bright fraction.
func NewROIExtractor(ratio int) (*ROIExtractor, error) {
	e := &ROIExtractor{Ratio: ratio, BrightFraction: DefaultBrightFraction}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *ROIExtractor) validate() error {
	if e.Ratio < 1 {
		return ErrInvalidRatio
	}
	if e.BrightFraction <= 0 || e.BrightFraction > 1 {
		return ErrInvalidBrightFraction
	}
	return nil
}

// Measure implements Extractor.
func (e *ROIExtractor) Measure(frame image.Image) (Measurement, error) {
	if frame == nil || frame.Bounds().Empty() {
		return Measurement{}, ErrEmptyFrame
	}
	roi := CenterSquare(frame.Bounds(), e.Ratio)

	if g, ok := frame.(*image.Gray); ok {
		return Measurement{Value: BrightMean(grayPixels(g, roi), e.BrightFraction), Region: roi}, nil
	}
	lum := make([]uint8, 0, roi.Dx()*roi.Dy())
	for y := roi.Min.Y; y < roi.Max.Y; y++ {
		for x := roi.Min.X; x < roi.Max.X; x++ {
			lum = append(lum, color.GrayModel.Convert(frame.At(x, y)).(color.Gray).Y)
		}
	}
	return Measurement{Value: BrightMean(lum, e.BrightFraction), Region: roi}, nil
}

func grayPixels(g *image.Gray, roi image.Rectangle) []uint8 {
	lum := make([]uint8, 0, roi.Dx()*roi.Dy())
	for y := roi.Min.Y; y < roi.Max.Y; y++ {
		row := g.Pix[g.PixOffset(roi.Min.X, y):g.PixOffset(roi.Max.X, y)]
		lum = append(lum, row...)
	}
	return lum
}

// CenterSquare returns the centred square of side min(w,h)/ratio, at least
// one pixel, clipped to bounds.
func CenterSquare(bounds image.Rectangle, ratio int) image.Rectangle {
	if ratio < 1 {
		ratio = 1
	}
	side := max(min(bounds.Dx(), bounds.Dy())/ratio, 1)
	cx := bounds.Min.X + bounds.Dx()/2
	cy := bounds.Min.Y + bounds.Dy()/2
	r := image.Rect(cx-side/2, cy-side/2, cx-side/2+side, cy-side/2+side)
	return r.Intersect(bounds)
}

// BrightMean averages the pixels strictly brighter than fraction of the
// maximum. An all-black patch reads 0.
func BrightMean(pixels []uint8, fraction float64) float64 {
	if len(pixels) == 0 {
		return 0
	}
	var peak uint8
	for _, p := range pixels {
		peak = max(peak, p)
	}
	cut := float64(peak) * fraction

	var sum, n float64
	for _, p := range pixels {
		if float64(p) > cut {
			sum += float64(p)
			n++
		}
	}
	if n == 0 {
		return float64(peak)
	}
	return sum / n
}
