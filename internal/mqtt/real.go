package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ColonelBlimp/lightmorse/internal/receiver"
	"github.com/ColonelBlimp/lightmorse/internal/transmit"
)

// Config holds broker settings.
type Config struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883 (from config: mqtt_broker)
	Broker string
	// Topic is the topic prefix (from config: mqtt_topic)
	Topic string
	// ClientID identifies this process to the broker
	ClientID string
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	topic  string
}

// NewRealPublisher creates a publisher connected to the configured broker.
func NewRealPublisher(cfg Config) (*RealPublisher, error) {
	if cfg.Topic == "" {
		return nil, ErrEmptyTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "lightmorse"
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealPublisher{client: client, topic: cfg.Topic}, nil
}

// PublishDecode sends a decoder flush, QoS 0.
func (p *RealPublisher) PublishDecode(r receiver.Result) error {
	payload, err := FormatDecodePayload(r)
	if err != nil {
		return fmt.Errorf("format decode payload: %w", err)
	}
	return p.publish(DecodeTopic(p.topic), 0, payload)
}

// PublishTransmission sends a transmission report, QoS 1.
func (p *RealPublisher) PublishTransmission(r transmit.Report) error {
	payload, err := FormatTransmitPayload(r)
	if err != nil {
		return fmt.Errorf("format transmit payload: %w", err)
	}
	return p.publish(TransmitTopic(p.topic), 1, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}

// IsConnected reports whether the client currently holds a connection
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}
