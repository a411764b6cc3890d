package mqtt

import (
	"sync"

	"github.com/ColonelBlimp/lightmorse/internal/receiver"
	"github.com/ColonelBlimp/lightmorse/internal/transmit"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Decodes contains all decoder results that were published.
	Decodes []receiver.Result

	// Transmissions contains all transmission reports that were published.
	Transmissions []transmit.Report

	// Payloads contains the JSON payloads in publishing order.
	Payloads [][]byte

	// PublishError, if set, will be returned by both publish methods.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishDecode(r receiver.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatDecodePayload(r)
	if err != nil {
		return err
	}
	f.Decodes = append(f.Decodes, r)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) PublishTransmission(r transmit.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatTransmitPayload(r)
	if err != nil {
		return err
	}
	f.Transmissions = append(f.Transmissions, r)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
