// Package mqtt publishes decoded text and transmission reports to a broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/ColonelBlimp/lightmorse/internal/receiver"
	"github.com/ColonelBlimp/lightmorse/internal/transmit"
)

// DefaultTopic is the topic prefix used when none is configured.
const DefaultTopic = "lightmorse"

// ErrEmptyTopic indicates the topic prefix must not be empty
var ErrEmptyTopic = errors.New("mqtt topic must not be empty")

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishDecode sends one decoder flush. Errors are reported, never fatal.
	PublishDecode(result receiver.Result) error

	// PublishTransmission sends the report of a finished transmission.
	PublishTransmission(report transmit.Report) error

	// Close disconnects from the broker.
	Close() error
}

// DecodeTopic returns the topic decoded text is published on
func DecodeTopic(prefix string) string {
	return prefix + "/decoded"
}

// TransmitTopic returns the topic transmission reports are published on
func TransmitTopic(prefix string) string {
	return prefix + "/transmitted"
}

// DecodePayload is the message for a decoder flush.
type DecodePayload struct {
	Decode DecodeInner `json:"decode"`
}

type DecodeInner struct {
	Session   string `json:"session"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason"`
	Letter    string `json:"letter,omitempty"`
	Morse     string `json:"morse"`
	Text      string `json:"text"`

	// DurationsMS is the letter's signed ON/OFF timing
	DurationsMS []int64 `json:"durations_ms,omitempty"`
}

// FormatDecodePayload creates the JSON payload for a decoder flush.
func FormatDecodePayload(r receiver.Result) ([]byte, error) {
	letter := ""
	if r.Letter != 0 {
		letter = string(r.Letter)
	}
	return json.Marshal(DecodePayload{
		Decode: DecodeInner{
			Session:     r.SessionID.String(),
			Timestamp:   r.At.UTC().Format(time.RFC3339Nano),
			Reason:      r.Reason.String(),
			Letter:      letter,
			Morse:       r.Morse,
			Text:        r.Text,
			DurationsMS: r.Durations,
		},
	})
}

// TransmitPayload is the message for a finished transmission.
type TransmitPayload struct {
	Transmission TransmitInner `json:"transmission"`
}

type TransmitInner struct {
	ID         string `json:"id"`
	Started    string `json:"started"`
	DurationMS int64  `json:"duration_ms"`
	Text       string `json:"text"`
	Morse      string `json:"morse"`
	Pulses     int    `json:"pulses"`
	Failures   int    `json:"failures,omitempty"`
	Canceled   bool   `json:"canceled,omitempty"`
}

// FormatTransmitPayload creates the JSON payload for a transmission report.
func FormatTransmitPayload(r transmit.Report) ([]byte, error) {
	return json.Marshal(TransmitPayload{
		Transmission: TransmitInner{
			ID:         r.ID.String(),
			Started:    r.Started.UTC().Format(time.RFC3339),
			DurationMS: r.Finished.Sub(r.Started).Milliseconds(),
			Text:       r.Text,
			Morse:      r.Morse,
			Pulses:     r.Pulses,
			Failures:   r.Failures,
			Canceled:   r.Canceled,
		},
	})
}
