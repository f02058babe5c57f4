package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the event-stream audit sink.
type MQTTConfig struct {
	BrokerURL string `yaml:"brokerUrl"`
	ClientID  string `yaml:"clientId"`
	Topic     string `yaml:"topic"`
	QoS       byte   `yaml:"qos"`

	// ConnectTimeout bounds the initial broker connection. Zero means 10s.
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// MQTTLog publishes audit entries as JSON messages on one topic.
type MQTTLog struct {
	client MQTT.Client
	topic  string
	qos    byte
}

// NewMQTTLog connects to the broker and returns the sink.
func NewMQTTLog(cfg MQTTConfig) (*MQTTLog, error) {
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	opts := MQTT.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetOrderMatters(false)
	client := MQTT.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect to MQTT broker %q: timeout after %s", cfg.BrokerURL, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %q: %w", cfg.BrokerURL, err)
	}
	return &MQTTLog{client: client, topic: cfg.Topic, qos: cfg.QoS}, nil
}

// Write implements Log, publishing one JSON message per entry.
func (l *MQTTLog) Write(ctx context.Context, entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serialize audit entry: %w", err)
	}
	token := l.client.Publish(l.topic, l.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements Log, disconnecting from the broker.
func (l *MQTTLog) Close() error {
	l.client.Disconnect(250)
	return nil
}
