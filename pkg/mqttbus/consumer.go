package mqttbus

import (
	"context"
	"fmt"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one inbound message from a topic.
type Handler func(topic string, message mqtt.Message) error

// IConsumer is the subscription capability the services depend on. The
// handler is injected after construction so a service can close over its own
// state.
type IConsumer interface {
	Consume(ctx context.Context) error
	SetHandler(h Handler)
}

// Consumer subscribes one topic filter on the shared client.
type Consumer struct {
	client  mqtt.Client
	topic   string
	handler Handler
}

var _ IConsumer = (*Consumer)(nil)

func NewConsumer(client mqtt.Client, topic string, handler Handler) *Consumer {
	return &Consumer{client: client, topic: topic, handler: handler}
}

func (c *Consumer) SetHandler(h Handler) { c.handler = h }

// QoSFor maps topic filters to delivery guarantees: decision, result and
// aggregated-data topics ride at-least-once, raw samples at-most-once.
func QoSFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "sensor/aggregated") ||
		strings.HasPrefix(t, "event/irrigationDecision") ||
		strings.HasPrefix(t, "event/irrigationResult") {
		return 1
	}
	return 0
}

// Consume subscribes and blocks until the context is cancelled, then
// unsubscribes. A failed subscribe is returned so the caller can stop
// instead of running deaf.
func (c *Consumer) Consume(ctx context.Context) error {
	token := c.client.Subscribe(c.topic, QoSFor(c.topic), func(_ mqtt.Client, m mqtt.Message) {
		if c.handler == nil {
			log.Printf("mqttbus: no handler for topic %s", c.topic)
			return
		}
		if err := c.handler(m.Topic(), m); err != nil {
			log.Printf("mqttbus: handler error on %s: %v", m.Topic(), err)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqttbus: subscribe %s: %w", c.topic, token.Error())
	}

	<-ctx.Done()
	c.client.Unsubscribe(c.topic).Wait()
	return nil
}
