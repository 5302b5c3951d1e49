// Package aggregator buffers raw probe samples and periodically publishes one
// averaged sample per sensor. The controller only ever consumes aggregated
// data, so transient probe noise never reaches a decision.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"

	"github.com/agrosmart/cropwater/internal/model/messages"
	"github.com/agrosmart/cropwater/pkg/mqttbus"
)

type sensorKey struct {
	fieldID  string
	sensorID string
}

// Service consumes raw samples and republishes per-sensor averages on a
// fixed interval.
type Service struct {
	consumer  mqttbus.IConsumer
	publisher mqttbus.IPublisher
	interval  time.Duration
	topicTmpl string // expects "%s/%s" -> field, sensor
	clock     clockwork.Clock

	mu     sync.Mutex
	buffer map[sensorKey][]messages.SensorData
}

// Option tweaks a Service at construction.
type Option func(*Service)

// WithClock injects a fake clock for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func New(consumer mqttbus.IConsumer, publisher mqttbus.IPublisher, interval time.Duration, opts ...Option) *Service {
	s := &Service{
		consumer:  consumer,
		publisher: publisher,
		interval:  interval,
		topicTmpl: "sensor/aggregated/%s/%s",
		clock:     clockwork.NewRealClock(),
		buffer:    make(map[sensorKey][]messages.SensorData),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.consumer.SetHandler(s.handleSample)
	return s
}

func (s *Service) handleSample(_ string, m mqtt.Message) error {
	var sample messages.SensorData
	if err := json.Unmarshal(m.Payload(), &sample); err != nil {
		return fmt.Errorf("aggregator: decode sample: %w", err)
	}
	if sample.Aggregated {
		return nil // already ours, don't loop
	}
	if sample.FieldID == "" || sample.SensorID == "" {
		return fmt.Errorf("aggregator: sample missing field/sensor id")
	}

	key := sensorKey{fieldID: sample.FieldID, sensorID: sample.SensorID}
	s.mu.Lock()
	s.buffer[key] = append(s.buffer[key], sample)
	s.mu.Unlock()
	return nil
}

// Start consumes until the context is cancelled, flushing averages every
// interval. A subscribe failure ends the service with an error.
func (s *Service) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.consumer.Consume(ctx) }()

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush() // drain what's buffered before exiting
			s.publisher.Close()
			return nil
		case err := <-errCh:
			if err != nil {
				s.publisher.Close()
				return fmt.Errorf("aggregator: consume: %w", err)
			}
			errCh = nil
		case <-ticker.Chan():
			s.Flush()
		}
	}
}

// Flush publishes one averaged sample per buffered sensor and resets the
// buffer. Sensors with no samples this interval publish nothing.
func (s *Service) Flush() {
	s.mu.Lock()
	pending := s.buffer
	s.buffer = make(map[sensorKey][]messages.SensorData)
	s.mu.Unlock()

	now := s.clock.Now().UTC()
	for key, samples := range pending {
		if len(samples) == 0 {
			continue
		}
		var moistureSum, tempSum float64
		for _, sample := range samples {
			moistureSum += sample.MoisturePct
			tempSum += sample.TemperatureC
		}
		n := float64(len(samples))
		out := messages.SensorData{
			FieldID:      key.fieldID,
			SensorID:     key.sensorID,
			MoisturePct:  moistureSum / n,
			TemperatureC: tempSum / n,
			Aggregated:   true,
			Timestamp:    now,
		}

		payload, err := json.Marshal(out)
		if err != nil {
			log.Printf("aggregator: marshal %s/%s: %v", key.fieldID, key.sensorID, err)
			continue
		}
		topic := fmt.Sprintf(s.topicTmpl, key.fieldID, key.sensorID)
		if err := s.publisher.Publish(topic, mqttbus.QoSFor(topic), payload); err != nil {
			log.Printf("aggregator: publish %s: %v", topic, err)
			continue
		}
		log.Printf("aggregator: published %s (n=%d moisture=%.1f temp=%.1f)",
			topic, len(samples), out.MoisturePct, out.TemperatureC)
	}
}
