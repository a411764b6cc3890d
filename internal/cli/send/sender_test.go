package send

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ColonelBlimp/lightmorse/internal/actuator"
	"github.com/ColonelBlimp/lightmorse/internal/cli"
	"github.com/ColonelBlimp/lightmorse/internal/config"
	"github.com/ColonelBlimp/lightmorse/internal/mqtt"
	"github.com/ColonelBlimp/lightmorse/internal/store"
)

func createTestSettings() config.Settings {
	return config.Settings{
		DotMS:       200,
		DashMS:      600,
		IntraGapMS:  400,
		LetterGapMS: 1000,
		LeadInMS:    1000,
		Actuator:    "log",
	}
}

// instantClock completes every sleep immediately on a virtual timeline.
type instantClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *instantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func TestSender_SendRecordsReport(t *testing.T) {
	clock := &instantClock{now: time.UnixMilli(1_700_000_000_000)}
	rec := actuator.NewRecorder(clock.Now)
	pub := mqtt.NewFakePublisher()
	history, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer history.Close()

	s, err := NewSender(createTestSettings(),
		WithActuator(rec),
		WithSleeper(clock, clock.Now),
		WithOutputs(cli.Outputs{Publisher: pub, History: history}))
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}

	report, err := s.Send(context.Background(), "sos")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if report.Pulses != 9 {
		t.Errorf("report.Pulses = %d, want 9", report.Pulses)
	}
	if got := len(rec.Pulses()); got != 9 {
		t.Errorf("actuator saw %d pulses, want 9", got)
	}
	// one second of lead-in before the first mark
	if first := rec.Commands()[1]; !first.On || first.At.Sub(report.Started) != time.Second {
		t.Errorf("first ON at %v after start, want 1s", first.At.Sub(report.Started))
	}

	if len(pub.Transmissions) != 1 || pub.Transmissions[0].ID != report.ID {
		t.Errorf("published transmissions = %+v", pub.Transmissions)
	}
	stored, err := history.RecentTransmissions(5)
	if err != nil {
		t.Fatalf("RecentTransmissions() error = %v", err)
	}
	if len(stored) != 1 || stored[0].Morse != "... --- ..." {
		t.Errorf("stored transmissions = %+v", stored)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !rec.Closed() || rec.IsOn() {
		t.Error("Close() should switch the lamp off and close the actuator")
	}
}

func TestSender_CancelledSendIsRecorded(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	s, err := NewSender(createTestSettings(),
		WithActuator(actuator.NewRecorder(nil)),
		WithOutputs(cli.Outputs{Publisher: pub}))
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := s.Send(ctx, "E")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
	if !report.Canceled {
		t.Error("report.Canceled = false, want true")
	}
	if len(pub.Transmissions) != 1 {
		t.Errorf("published %d transmissions, want 1", len(pub.Transmissions))
	}
}

func TestOpenActuator(t *testing.T) {
	s := createTestSettings()
	a, err := OpenActuator(s, nil)
	if err != nil {
		t.Fatalf("OpenActuator(log) error = %v", err)
	}
	if _, ok := a.(*actuator.Log); !ok {
		t.Errorf("OpenActuator(log) = %T, want *actuator.Log", a)
	}

	s.Actuator = "laser"
	if _, err := OpenActuator(s, nil); !errors.Is(err, ErrUnknownActuator) {
		t.Errorf("OpenActuator(laser) error = %v, want ErrUnknownActuator", err)
	}

	s.Actuator = "serial"
	s.SerialBaud = 0
	if _, err := OpenActuator(s, nil); !errors.Is(err, actuator.ErrInvalidBaud) {
		t.Errorf("OpenActuator(serial) error = %v, want ErrInvalidBaud", err)
	}
}

func TestNewSender_InvalidTiming(t *testing.T) {
	s := createTestSettings()
	s.DashMS = 100
	rec := actuator.NewRecorder(nil)
	if _, err := NewSender(s, WithActuator(rec), WithOutputs(cli.Outputs{})); err == nil {
		t.Error("NewSender() should reject a dash shorter than a dot")
	}
	if !rec.Closed() {
		t.Error("actuator should be closed when NewSender fails")
	}
}
