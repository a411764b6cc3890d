//go:build !nocv

// Package camera reads frames from a webcam and measures lamp brightness with
// OpenCV. Build with -tags nocv on machines without OpenCV.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/ColonelBlimp/lightmorse/internal/brightness"
	"github.com/ColonelBlimp/lightmorse/internal/sensor"
)

const (
	claheClipLimit = 3.0
	blurKernel     = 5
	// maxReadFailures consecutive failed reads end the capture
	maxReadFailures = 30
)

var (
	// ErrReadFailed marks a frame the device did not deliver
	ErrReadFailed = errors.New("camera returned no frame")
	// ErrDeviceLost indicates the camera stopped delivering frames altogether
	ErrDeviceLost = errors.New("camera stopped delivering frames")
)

var claheTiles = image.Pt(8, 8)

// Available reports whether this build can talk to a camera.
func Available() bool { return true }

// EnhancedExtractor measures brightness after local contrast enhancement and
// smoothing, which lifts a dim lamp out of a noisy sensor image.
type EnhancedExtractor struct {
	// Ratio divides the shorter frame side to give the ROI side (from config: roi_ratio)
	Ratio int
	// CLAHE turns contrast-limited histogram equalisation on (from config: clahe)
	CLAHE bool
	// BrightFraction is the share of the ROI maximum a pixel must exceed
	BrightFraction float64
}

// NewEnhancedExtractor creates an extractor with the default bright fraction.
func NewEnhancedExtractor(ratio int, clahe bool) (*EnhancedExtractor, error) {
	if ratio < 1 {
		return nil, brightness.ErrInvalidRatio
	}
	return &EnhancedExtractor{
		Ratio:          ratio,
		CLAHE:          clahe,
		BrightFraction: brightness.DefaultBrightFraction,
	}, nil
}

// Measure implements brightness.Extractor.
func (e *EnhancedExtractor) Measure(frame image.Image) (brightness.Measurement, error) {
	if frame == nil || frame.Bounds().Empty() {
		return brightness.Measurement{}, brightness.ErrEmptyFrame
	}
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return brightness.Measurement{}, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	value, roi, err := e.measureMat(mat)
	if err != nil {
		return brightness.Measurement{}, err
	}
	return brightness.Measurement{Value: value, Region: roi.Add(frame.Bounds().Min)}, nil
}

func (e *EnhancedExtractor) measureMat(bgr gocv.Mat) (float64, image.Rectangle, error) {
	if bgr.Empty() {
		return 0, image.Rectangle{}, brightness.ErrEmptyFrame
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	if e.CLAHE {
		clahe := gocv.NewCLAHEWithParams(claheClipLimit, claheTiles)
		defer clahe.Close()
		equalised := gocv.NewMat()
		defer equalised.Close()
		clahe.Apply(gray, &equalised)
		equalised.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(blurKernel, blurKernel), 0, 0, gocv.BorderDefault)

	roi := brightness.CenterSquare(image.Rect(0, 0, blurred.Cols(), blurred.Rows()), e.Ratio)
	region := blurred.Region(roi)
	defer region.Close()
	// Region shares the parent's strided buffer; clone to get contiguous rows
	patch := region.Clone()
	defer patch.Close()

	return brightness.BrightMean(patch.ToBytes(), e.BrightFraction), roi, nil
}

// SourceConfig holds configuration for a camera source.
type SourceConfig struct {
	// Device is the capture index (from config: camera_index)
	Device int
	// FPS requests a frame rate from the driver; 0 leaves the default
	FPS float64
}

// Source publishes webcam frames as images for the receiver to measure.
type Source struct {
	config SourceConfig
	logger *slog.Logger
}

// NewSource creates a camera source. The device is opened by Run.
func NewSource(cfg SourceConfig) *Source {
	return &Source{config: cfg, logger: slog.Default()}
}

// Run implements sensor.Source.
func (s *Source) Run(ctx context.Context, publish sensor.PublishFunc) error {
	webcam, err := gocv.OpenVideoCapture(s.config.Device)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", s.config.Device, err)
	}
	defer webcam.Close()
	if s.config.FPS > 0 {
		webcam.Set(gocv.VideoCaptureFPS, s.config.FPS)
	}

	mat := gocv.NewMat()
	defer mat.Close()

	var seq uint64
	failures := 0
	for ctx.Err() == nil {
		seq++
		frame := sensor.Frame{Seq: seq}
		ok := webcam.Read(&mat)
		frame.Timestamp = time.Now()

		if !ok || mat.Empty() {
			failures++
			if failures >= maxReadFailures {
				return ErrDeviceLost
			}
			frame.Err = ErrReadFailed
			publish(frame)
			continue
		}
		failures = 0

		img, err := mat.ToImage()
		if err != nil {
			frame.Err = fmt.Errorf("convert frame: %w", err)
		}
		frame.Image = img
		publish(frame)
	}
	s.logger.Debug("camera stopped", "device", s.config.Device, "frames", seq)
	return ctx.Err()
}
