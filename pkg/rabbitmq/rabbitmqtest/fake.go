// Package rabbitmqtest provides an in-memory MQTT client for tests.
package rabbitmqtest

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Token is an already completed token.
type Token struct{ Err error }

func (t Token) Wait() bool                     { return true }
func (t Token) WaitTimeout(time.Duration) bool { return true }
func (t Token) Error() error                   { return t.Err }
func (t Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Message is a received MQTT message.
type Message struct {
	TopicName string
	QoS       byte
	Body      []byte
}

func (m *Message) Duplicate() bool   { return false }
func (m *Message) Qos() byte         { return m.QoS }
func (m *Message) Retained() bool    { return false }
func (m *Message) Topic() string     { return m.TopicName }
func (m *Message) MessageID() uint16 { return 0 }
func (m *Message) Payload() []byte   { return m.Body }
func (m *Message) Ack()              {}

// Client records publications and routes them to matching subscriptions.
// Methods it does not override panic through the nil embedded interface.
type Client struct {
	mqtt.Client

	mu        sync.Mutex
	published []*Message
	subs      map[string]mqtt.MessageHandler
	// PublishErr, when set, fails every publication.
	PublishErr error
}

// NewClient returns an empty fake client.
func NewClient() *Client {
	return &Client{subs: make(map[string]mqtt.MessageHandler)}
}

func (c *Client) IsConnected() bool      { return true }
func (c *Client) IsConnectionOpen() bool { return true }
func (c *Client) Disconnect(uint)        {}

func (c *Client) Publish(topic string, qos byte, _ bool, payload any) mqtt.Token {
	if c.PublishErr != nil {
		return Token{Err: c.PublishErr}
	}
	var body []byte
	switch v := payload.(type) {
	case []byte:
		body = v
	case string:
		body = []byte(v)
	}
	msg := &Message{TopicName: topic, QoS: qos, Body: body}
	c.mu.Lock()
	c.published = append(c.published, msg)
	var handlers []mqtt.MessageHandler
	for filter, h := range c.subs {
		if Match(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(c, msg)
	}
	return Token{}
}

func (c *Client) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[topic] = cb
	return Token{}
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.subs, t)
	}
	return Token{}
}

// Deliver hands a message to the subscriptions matching topic without recording it.
func (c *Client) Deliver(topic string, body []byte) {
	msg := &Message{TopicName: topic, QoS: 1, Body: body}
	c.mu.Lock()
	var handlers []mqtt.MessageHandler
	for filter, h := range c.subs {
		if Match(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(c, msg)
	}
}

// Subscribed reports whether filter currently has a subscription.
func (c *Client) Subscribed(filter string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[filter]
	return ok
}

// Published returns the messages published on topics with the given prefix.
func (c *Client) Published(prefix string) []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Message
	for _, m := range c.published {
		if strings.HasPrefix(m.TopicName, prefix) {
			out = append(out, m)
		}
	}
	return out
}

// Match reports whether topic matches the MQTT filter with + and # wildcards.
func Match(filter, topic string) bool {
	fs := strings.Split(filter, "/")
	ts := strings.Split(topic, "/")
	for i, f := range fs {
		if f == "#" {
			return true
		}
		if i >= len(ts) {
			return false
		}
		if f != "+" && f != ts[i] {
			return false
		}
	}
	return len(fs) == len(ts)
}
