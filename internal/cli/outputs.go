// Package cli holds the wiring shared by the command implementations.
package cli

import (
	"errors"
	"fmt"

	"github.com/ColonelBlimp/lightmorse/internal/config"
	"github.com/ColonelBlimp/lightmorse/internal/mqtt"
	"github.com/ColonelBlimp/lightmorse/internal/store"
)

// Outputs are the optional destinations for decoded text and transmission
// reports. Either field may be nil.
type Outputs struct {
	Publisher mqtt.Publisher
	History   *store.Store
}

// OpenOutputs connects the outputs enabled in s: MQTT when mqtt_broker is
// set, SQLite history when history_db is set.
func OpenOutputs(s config.Settings) (Outputs, error) {
	var out Outputs
	if s.MQTTBroker != "" {
		pub, err := mqtt.NewRealPublisher(mqtt.Config{
			Broker:   s.MQTTBroker,
			Topic:    s.MQTTTopic,
			ClientID: config.AppName,
		})
		if err != nil {
			return Outputs{}, fmt.Errorf("mqtt: %w", err)
		}
		out.Publisher = pub
	}
	if s.HistoryDB != "" {
		db, err := store.Open(s.HistoryDB)
		if err != nil {
			out.Close()
			return Outputs{}, fmt.Errorf("history: %w", err)
		}
		out.History = db
	}
	return out, nil
}

// Close disconnects everything that was opened.
func (o Outputs) Close() error {
	var errs []error
	if o.Publisher != nil {
		errs = append(errs, o.Publisher.Close())
	}
	if o.History != nil {
		errs = append(errs, o.History.Close())
	}
	return errors.Join(errs...)
}
