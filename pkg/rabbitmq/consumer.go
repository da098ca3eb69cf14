package rabbitmq

import (
	"context"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Handler processes one message received on topic.
type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes to topics until its context ends.
type IConsumer interface {
	ConsumeMessage(ctx context.Context) error
	SetHandler(handler Handler)
}

// QosFor returns the QoS used on topic: at-least-once for run requests, daily
// records and events, at-most-once otherwise.
func QosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	for _, prefix := range []string{"sim/run/request", "sim/daily", "event/"} {
		if strings.HasPrefix(t, prefix) {
			return 1
		}
	}
	return 0
}

// Consumer subscribes a handler to one or more topics on the shared client.
type Consumer struct {
	client  mqtt.Client
	topics  []string
	handler Handler
	log     logrus.FieldLogger
}

// NewConsumer returns a consumer of topics.
func NewConsumer(client mqtt.Client, topics []string, handler Handler, log logrus.FieldLogger) *Consumer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Consumer{client: client, topics: topics, handler: handler, log: log}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// ConsumeMessage subscribes to every topic and blocks until ctx is done, then
// unsubscribes. Handler errors are logged and do not stop consumption.
func (c *Consumer) ConsumeMessage(ctx context.Context) error {
	var subscribed []string
	for _, topic := range c.topics {
		topic := topic
		token := c.client.Subscribe(topic, QosFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			if c.handler == nil {
				c.log.Warnf("no handler set for topic %s", topic)
				return
			}
			if err := c.handler(msg.Topic(), msg); err != nil {
				c.log.WithError(err).WithField("topic", msg.Topic()).Error("error handling message")
			}
		})
		token.Wait()
		if err := token.Error(); err != nil {
			c.unsubscribe(subscribed)
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		subscribed = append(subscribed, topic)
		c.log.Infof("subscribed to topic %s", topic)
	}

	<-ctx.Done()
	c.unsubscribe(subscribed)
	return nil
}

func (c *Consumer) unsubscribe(topics []string) {
	if len(topics) == 0 {
		return
	}
	c.client.Unsubscribe(topics...).Wait()
}
