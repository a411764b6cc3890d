package sensor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/ColonelBlimp/lightmorse/internal/dsp"
)

var (
	ErrNotInitialized = errors.New("audio capture not initialized")
	ErrAlreadyRunning = errors.New("audio capture already running")
)

// AudioConfig holds configuration for a photodiode on a sound card input.
type AudioConfig struct {
	DeviceIndex      int     // -1 for default device (from config: audio_device_index)
	SampleRate       uint32  // e.g. 48000 (from config: sample_rate)
	CarrierFrequency float64 // modulation of the lamp in Hz (from config: carrier_frequency)
	BlockSize        uint32  // samples per brightness reading (from config: block_size)
}

// DefaultAudioConfig returns a 48kHz capture with 10ms readings of a 1kHz carrier.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		DeviceIndex:      -1,
		SampleRate:       48000,
		CarrierFrequency: 1000,
		BlockSize:        480,
	}
}

// AudioSensor measures a chopped light source through a photodiode wired to
// a line or mic input. The carrier amplitude of each block is the brightness.
type AudioSensor struct {
	config AudioConfig
	filter *dsp.CarrierFilter

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	running bool

	// block timestamps are derived from the sample count, not the callback
	// time, so sound card buffering does not add jitter
	start  time.Time
	blocks uint64
}

// NewAudioSensor creates a sensor; call Init before Run.
func NewAudioSensor(cfg AudioConfig) (*AudioSensor, error) {
	filter, err := dsp.NewCarrierFilter(dsp.CarrierConfig{
		Frequency:  cfg.CarrierFrequency,
		SampleRate: float64(cfg.SampleRate),
		BlockSize:  int(cfg.BlockSize),
	})
	if err != nil {
		return nil, err
	}
	return &AudioSensor{config: cfg, filter: filter}, nil
}

// Init initializes the audio backend
func (a *AudioSensor) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	a.ctx = ctx
	return nil
}

// ListDevices returns available capture devices
func (a *AudioSensor) ListDevices() ([]malgo.DeviceInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx == nil {
		return nil, ErrNotInitialized
	}
	infos, err := a.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// Run implements Source. It captures until ctx is cancelled.
func (a *AudioSensor) Run(ctx context.Context, publish PublishFunc) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	if a.ctx == nil {
		a.mu.Unlock()
		return ErrNotInitialized
	}
	a.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.SampleRate = a.config.SampleRate
	deviceConfig.PeriodSizeInFrames = a.config.BlockSize
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1

	if a.config.DeviceIndex >= 0 {
		devices, err := a.ListDevices()
		if err != nil {
			return err
		}
		if a.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("device index %d out of range (have %d devices)",
				a.config.DeviceIndex, len(devices))
		}
		deviceConfig.Capture.DeviceID = devices[a.config.DeviceIndex].ID.Pointer()
	}

	a.start = time.Now()
	a.blocks = 0
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			a.process(input, publish)
		},
	}

	device, err := malgo.InitDevice(a.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("start device: %w", err)
	}
	a.setRunning(true)
	defer a.setRunning(false)

	<-ctx.Done()
	_ = device.Stop()
	return nil
}

// process runs on the audio thread.
func (a *AudioSensor) process(input []byte, publish PublishFunc) {
	if len(input) == 0 {
		return
	}
	for _, level := range a.filter.Feed(bytesToFloat32(input)) {
		a.blocks++
		samples := time.Duration(a.blocks) * time.Duration(a.config.BlockSize)
		offset := samples * time.Second / time.Duration(a.config.SampleRate)
		publish(Frame{Seq: a.blocks, Timestamp: a.start.Add(offset), Level: level})
	}
}

func (a *AudioSensor) setRunning(v bool) {
	a.mu.Lock()
	a.running = v
	a.mu.Unlock()
}

// IsRunning returns true while capture is active
func (a *AudioSensor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Close releases the audio backend
func (a *AudioSensor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx == nil {
		return nil
	}
	if err := a.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninit context: %w", err)
	}
	a.ctx.Free()
	a.ctx = nil
	return nil
}

// bytesToFloat32 decodes little-endian f32 PCM
func bytesToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
