package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes JSON payloads on MQTT topics.
type IPublisher interface {
	Publish(topic string, payload any) error
	PublishToQos(topic string, qos byte, payload any) error
}

// Publisher publishes on the shared MQTT client.
type Publisher struct {
	client  mqtt.Client
	timeout time.Duration
}

// NewPublisher returns a publisher waiting at most timeout for each delivery.
func NewPublisher(client mqtt.Client, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{client: client, timeout: timeout}
}

// Publish sends payload with the QoS of its topic.
func (p *Publisher) Publish(topic string, payload any) error {
	return p.PublishToQos(topic, QosFor(topic), payload)
}

// PublishToQos sends payload with the given QoS. Strings and byte slices are
// sent as they are, anything else is encoded as JSON.
func (p *Publisher) PublishToQos(topic string, qos byte, payload any) error {
	var body []byte
	switch v := payload.(type) {
	case []byte:
		body = v
	case string:
		body = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode payload for %s: %w", topic, err)
		}
		body = b
	}
	token := p.client.Publish(topic, qos, false, body)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: timed out after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
