package mqttbus

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher is the outbound capability the services depend on.
type IPublisher interface {
	Publish(topic string, qos byte, payload []byte) error
	Close()
}

// Publisher publishes on the shared client with per-call topic and QoS.
type Publisher struct {
	client mqtt.Client
}

var _ IPublisher = (*Publisher)(nil)

func NewPublisher(client mqtt.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(topic string, qos byte, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqttbus: publish %s: %w", topic, token.Error())
	}
	return nil
}

func (p *Publisher) Close() {
	Close(p.client)
}
