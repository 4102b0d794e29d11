package btlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/joeycumines/bte/internal/bt"
)

// DefaultPublishTimeout bounds how long a batch publish may wait for the
// broker.
const DefaultPublishTimeout = 5 * time.Second

// ErrPublishTimeout is returned when the broker does not acknowledge a
// publish in time.
var ErrPublishTimeout = errors.New("btlog: mqtt publish timed out")

// Publisher is the subset of mqtt.Client used by the MQTT backend.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// MQTT publishes each batch as a JSON array to a topic.
type MQTT struct {
	client   Publisher
	topic    string
	qos      byte
	retained bool
	timeout  time.Duration
}

// MQTTOption configures an MQTT backend.
type MQTTOption func(*MQTT)

// WithQoS sets the publish quality of service level.
func WithQoS(qos byte) MQTTOption {
	return func(m *MQTT) { m.qos = qos }
}

// WithRetained marks published batches as retained.
func WithRetained(retained bool) MQTTOption {
	return func(m *MQTT) { m.retained = retained }
}

// WithPublishTimeout bounds each publish.
func WithPublishTimeout(d time.Duration) MQTTOption {
	return func(m *MQTT) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewMQTT returns a backend publishing to topic through client. If client
// is an mqtt.Client it is disconnected on Close.
func NewMQTT(client Publisher, topic string, opts ...MQTTOption) *MQTT {
	m := &MQTT{client: client, topic: topic, timeout: DefaultPublishTimeout}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WriteBatch implements Backend.
func (m *MQTT) WriteBatch(ctx context.Context, batch []bt.Transition) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("btlog: encode batch: %w", err)
	}
	token := m.client.Publish(m.topic, m.qos, m.retained, payload)

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("btlog: mqtt publish to %s: %w", m.topic, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrPublishTimeout, m.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements Backend.
func (m *MQTT) Close() error {
	if c, ok := m.client.(interface{ Disconnect(quiesce uint) }); ok {
		c.Disconnect(250)
	}
	return nil
}

// DialMQTT connects to broker, for example "tcp://localhost:1883".
func DialMQTT(broker, clientID string, timeout time.Duration) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("btlog: mqtt connect to %s: timed out after %s", broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("btlog: mqtt connect to %s: %w", broker, err)
	}
	return c, nil
}
