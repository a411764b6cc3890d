// Package decode wires a light sensor, the receive pipeline and the
// configured outputs into a runnable decoder.
package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/ColonelBlimp/lightmorse/internal/brightness"
	"github.com/ColonelBlimp/lightmorse/internal/camera"
	"github.com/ColonelBlimp/lightmorse/internal/cli"
	"github.com/ColonelBlimp/lightmorse/internal/config"
	"github.com/ColonelBlimp/lightmorse/internal/morse"
	"github.com/ColonelBlimp/lightmorse/internal/receiver"
	"github.com/ColonelBlimp/lightmorse/internal/sensor"
)

// ErrUnknownSource indicates the configured source has no implementation
var ErrUnknownSource = errors.New("unknown light source")

// Option customises a Decoder, mostly for tests.
type Option func(*Decoder)

// WithSource replaces the configured light source.
func WithSource(src sensor.Source) Option {
	return func(d *Decoder) { d.source = src }
}

// WithOutputs replaces the outputs opened from configuration.
func WithOutputs(o cli.Outputs) Option {
	return func(d *Decoder) {
		d.outputs = o
		d.outputsSet = true
	}
}

// Decoder runs one receive session from a light source to the terminal and
// any configured outputs.
type Decoder struct {
	settings config.Settings
	logger   *slog.Logger

	source     sensor.Source
	unpaced    bool // replay frames synchronously
	frames     []sensor.Frame
	pipeline   *receiver.Pipeline
	session    *receiver.Session
	printer    *Printer
	outputs    cli.Outputs
	outputsSet bool
	closers    []io.Closer
}

// NewDecoder builds a decoder from settings, printing decoded text to out.
func NewDecoder(s config.Settings, out io.Writer, opts ...Option) (*Decoder, error) {
	d := &Decoder{
		settings: s,
		logger:   slog.Default(),
		printer:  NewPrinter(out),
	}
	for _, opt := range opts {
		opt(d)
	}

	extractor, err := d.extractor()
	if err != nil {
		return nil, err
	}
	d.pipeline, err = receiver.NewPipeline(s.Thresholds(), extractor, morse.Standard)
	if err != nil {
		return nil, err
	}
	d.session, err = receiver.NewSession(d.pipeline, s.TickInterval(), d.handle)
	if err != nil {
		return nil, err
	}
	d.session.SetLogger(d.logger)

	if d.source == nil {
		if err := d.openSource(); err != nil {
			d.Close()
			return nil, err
		}
	}
	if !d.outputsSet {
		if d.outputs, err = cli.OpenOutputs(s); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *Decoder) extractor() (brightness.Extractor, error) {
	if d.settings.Source != "camera" {
		return brightness.NewROIExtractor(d.settings.ROIRatio)
	}
	return camera.NewEnhancedExtractor(d.settings.ROIRatio, d.settings.CLAHE)
}

func (d *Decoder) openSource() error {
	s := d.settings
	switch s.Source {
	case "camera":
		d.source = camera.NewSource(camera.SourceConfig{Device: s.CameraIndex, FPS: s.CameraFPS})
	case "serial":
		ls, err := sensor.OpenSerial(sensor.SerialConfig{Port: s.SerialPort, Baud: s.SerialBaud})
		if err != nil {
			return err
		}
		d.source = ls
		d.closers = append(d.closers, ls)
	case "audio":
		as, err := sensor.NewAudioSensor(sensor.AudioConfig{
			DeviceIndex:      s.AudioDeviceIndex,
			SampleRate:       uint32(s.SampleRate),
			CarrierFrequency: s.CarrierFrequency,
			BlockSize:        uint32(s.BlockSize),
		})
		if err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		if err := as.Init(); err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		d.source = as
		d.closers = append(d.closers, as)
	case "replay":
		frames, err := sensor.LoadCSV(s.ReplayFile)
		if err != nil {
			return err
		}
		if s.ReplaySpeed == 0 {
			d.unpaced = true
			d.frames = frames
		} else {
			d.source = sensor.NewReplay(frames, s.ReplaySpeed)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, s.Source)
	}
	return nil
}

// Run decodes until ctx is cancelled or the source ends.
func (d *Decoder) Run(ctx context.Context) error {
	d.logger.Info("decoder starting", "source", d.settings.Source, "session", d.session.ID().String())
	defer d.printer.Finish()

	if d.unpaced {
		// an unpaced replay would outrun the session's one-frame handover
		for _, out := range d.pipeline.Replay(d.frames, d.settings.TickInterval()) {
			d.handle(receiver.Result{SessionID: d.session.ID(), Output: out})
		}
		return nil
	}
	return d.session.Run(ctx, d.source)
}

func (d *Decoder) handle(r receiver.Result) {
	d.printer.Print(r)
	if p := d.outputs.Publisher; p != nil {
		if err := p.PublishDecode(r); err != nil {
			d.logger.Warn("mqtt publish failed", "error", err)
		}
	}
	if h := d.outputs.History; h != nil {
		if err := h.RecordDecode(r); err != nil {
			d.logger.Warn("history write failed", "error", err)
		}
	}
}

// Text returns everything decoded so far
func (d *Decoder) Text() string {
	return d.printer.Text()
}

// Stats returns the session counters.
func (d *Decoder) Stats() receiver.Stats {
	if d.unpaced {
		return receiver.Stats{Published: uint64(len(d.frames)), PipelineStats: d.pipeline.Stats()}
	}
	return d.session.Stats()
}

// Close releases the source and the outputs.
func (d *Decoder) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i].Close())
	}
	d.closers = nil
	if !d.outputsSet {
		errs = append(errs, d.outputs.Close())
	}
	return errors.Join(errs...)
}

// Printer writes decoded text as it grows. The assembler's Text is
// cumulative, so only the new tail is written on each flush.
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	printed string
}

// NewPrinter creates a printer writing to w. A nil w discards output.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = io.Discard
	}
	return &Printer{w: w}
}

// Print writes the part of r.Text not yet printed.
func (p *Printer) Print(r receiver.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !strings.HasPrefix(r.Text, p.printed) {
		// a reset pipeline starts a new line
		fmt.Fprintln(p.w)
		p.printed = ""
	}
	fmt.Fprint(p.w, r.Text[len(p.printed):])
	p.printed = r.Text
}

// Finish ends the current line if anything was printed.
func (p *Printer) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed != "" {
		fmt.Fprintln(p.w)
	}
}

// Text returns everything printed
func (p *Printer) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}

// Device is a capture device a photodiode can be wired to.
type Device struct {
	Index int
	Name  string
}

// ListAudioDevices returns the capture devices seen by the audio backend.
func ListAudioDevices() ([]Device, error) {
	as, err := sensor.NewAudioSensor(sensor.DefaultAudioConfig())
	if err != nil {
		return nil, err
	}
	if err := as.Init(); err != nil {
		return nil, err
	}
	defer as.Close()

	infos, err := as.ListDevices()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{Index: i, Name: info.Name()}
	}
	return devices, nil
}
