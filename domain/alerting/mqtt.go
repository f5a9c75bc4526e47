package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttQoS            = 1
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Broker   string // host:port, tcp:// is added when no scheme is given
	ClientID string
	Username string
	Password string
	Topic    string
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier publishes alerts as JSON to <topic>/<recipient>.
type MQTTNotifier struct {
	client    mqtt.Client
	pub       publisher
	topic     string
	logger    *slog.Logger
	connected atomic.Bool
	published atomic.Uint64
	errors    atomic.Uint64
}

type mqttPayload struct {
	Student   string `json:"student"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ConnectMQTT dials the broker with automatic reconnects and waits for the
// first connection until ctx ends or the connect timeout elapses.
func ConnectMQTT(ctx context.Context, opts MQTTOptions, logger *slog.Logger) (*MQTTNotifier, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("%w: mqtt broker missing", ErrNotConfigured)
	}
	n := &MQTTNotifier{topic: strings.TrimSuffix(opts.Topic, "/"), logger: logger}

	broker := opts.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	co := mqtt.NewClientOptions()
	co.AddBroker(broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(2 * time.Second)
	co.SetMaxReconnectInterval(30 * time.Second)
	co.OnConnect = func(mqtt.Client) {
		n.connected.Store(true)
		if logger != nil {
			logger.Info("mqtt connected", "broker", broker)
		}
	}
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		n.connected.Store(false)
		if logger != nil {
			logger.Warn("mqtt connection lost", "broker", broker, "error", err)
		}
	}

	n.client = mqtt.NewClient(co)
	n.pub = n.client
	token := n.client.Connect()
	if err := waitToken(ctx, token, mqttConnectTimeout); err != nil {
		n.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	n.connected.Store(true)
	return n, nil
}

func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timeout after %v", timeout)
	}
}

// Notify publishes n with QoS 1.
func (m *MQTTNotifier) Notify(ctx context.Context, n Notification) error {
	if m.client != nil && !m.connected.Load() {
		m.errors.Add(1)
		return fmt.Errorf("%w: mqtt not connected", ErrNotConfigured)
	}
	suffix := n.To
	if suffix == "" {
		suffix = n.Name
	}
	topic := m.topic
	if suffix != "" {
		topic = topic + "/" + suffix
	}
	payload, err := json.Marshal(mqttPayload{
		Student:   n.Name,
		Kind:      n.Kind.Slug(),
		Message:   n.Body,
		Timestamp: n.At.Format(time.RFC3339),
	})
	if err != nil {
		m.errors.Add(1)
		return fmt.Errorf("mqtt payload: %w", err)
	}
	if err := waitToken(ctx, m.pub.Publish(topic, mqttQoS, false, payload), mqttPublishTimeout); err != nil {
		m.errors.Add(1)
		return fmt.Errorf("mqtt publish: %w", err)
	}
	m.published.Add(1)
	if m.logger != nil {
		m.logger.Debug("alert published", "topic", topic, "size", len(payload))
	}
	return nil
}

// Published returns the number of successful publishes.
func (m *MQTTNotifier) Published() uint64 { return m.published.Load() }

// Errors returns the number of failed publishes.
func (m *MQTTNotifier) Errors() uint64 { return m.errors.Load() }

// Close disconnects from the broker.
func (m *MQTTNotifier) Close() error {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	m.connected.Store(false)
	return nil
}
