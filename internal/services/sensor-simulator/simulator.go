package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"

	"github.com/agrosmart/cropwater/internal/model"
	"github.com/agrosmart/cropwater/pkg/dedup"
	"github.com/agrosmart/cropwater/pkg/mqttbus"
)

// Simulator publishes raw samples for one sensor on an interval and obeys
// StateChangeEvents addressed to it: the valve opens for the commanded
// duration, then reverts and reports an IrrigationResultEvent.
type Simulator struct {
	mu        sync.Mutex
	sensor    *model.Sensor
	generator *Generator
	publisher mqttbus.IPublisher
	consumer  mqttbus.IConsumer
	deduper   *dedup.Deduper
	clock     clockwork.Clock

	timer     clockwork.Timer
	onSince   time.Time
	onPlanned time.Duration
}

type Option func(*Simulator)

func WithClock(c clockwork.Clock) Option {
	return func(s *Simulator) { s.clock = c }
}

func New(consumer mqttbus.IConsumer, publisher mqttbus.IPublisher,
	gen *Generator, sensor *model.Sensor, opts ...Option) *Simulator {
	s := &Simulator{
		sensor:    sensor,
		generator: gen,
		publisher: publisher,
		consumer:  consumer,
		deduper:   dedup.New(2*time.Minute, 10000),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.consumer.SetHandler(s.handleStateChange)
	return s
}

// Start consumes valve commands and publishes one sample per interval until
// the context is cancelled. A subscribe failure ends the simulator with an
// error.
func (s *Simulator) Start(ctx context.Context, interval time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.consumer.Consume(ctx) }()

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.publisher.Close()
			return nil
		case err := <-errCh:
			if err != nil {
				s.publisher.Close()
				return fmt.Errorf("simulator: consume: %w", err)
			}
			errCh = nil
		case <-ticker.Chan():
			s.publishSample()
		}
	}
}

func (s *Simulator) publishSample() {
	s.mu.Lock()
	sample := s.generator.Next(s.sensor)
	s.mu.Unlock()

	payload, err := json.Marshal(sample)
	if err != nil {
		log.Printf("simulator: marshal sample: %v", err)
		return
	}
	topic := fmt.Sprintf("sensor/data/%s/%s", s.sensor.FieldID, s.sensor.ID)
	if err := s.publisher.Publish(topic, mqttbus.QoSFor(topic), payload); err != nil {
		log.Printf("simulator: publish sample: %v", err)
		return
	}
	log.Printf("simulator: %s/%s moisture=%.1f%% temp=%.1fC",
		sample.FieldID, sample.SensorID, sample.MoisturePct, sample.TemperatureC)
}

func (s *Simulator) handleStateChange(_ string, m mqtt.Message) error {
	// QoS1 redeliveries carry the same payload, drop them up front
	if s.deduper.Seen(m.Payload()) {
		return nil
	}

	var evt model.StateChangeEvent
	if err := json.Unmarshal(m.Payload(), &evt); err != nil {
		return fmt.Errorf("simulator: decode StateChangeEvent: %w", err)
	}
	if evt.SensorID != s.sensor.ID || (evt.FieldID != "" && evt.FieldID != s.sensor.FieldID) {
		return nil // addressed to another probe
	}
	s.applyTimedState(evt)
	return nil
}

func (s *Simulator) applyTimedState(evt model.StateChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// advance the walk under the old state before switching
	s.generator.Next(s.sensor)

	// a command that preempts a running cycle aborts it
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		if s.sensor.State == model.StateOn {
			s.publishResultLocked("FAIL", "aborted")
		}
	}

	s.sensor.State = evt.NewState
	log.Printf("simulator: %s -> %s for %s", s.sensor.ID, evt.NewState, evt.Duration)

	if evt.NewState != model.StateOn || evt.Duration <= 0 {
		return
	}

	s.onSince = s.clock.Now().UTC()
	s.onPlanned = evt.Duration
	s.timer = s.clock.AfterFunc(evt.Duration, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.timer = nil
		s.generator.Next(s.sensor) // bank the watering before the valve closes
		s.sensor.State = model.StateOff
		s.publishResultLocked("OK", "done")
	})
}

// publishResultLocked reports how much water the cycle actually delivered.
// Callers hold s.mu.
func (s *Simulator) publishResultLocked(status, reason string) {
	elapsed := s.clock.Now().UTC().Sub(s.onSince)
	if elapsed > s.onPlanned {
		elapsed = s.onPlanned
	}
	if elapsed < 0 {
		elapsed = 0
	}
	evt := model.IrrigationResultEvent{
		FieldID:   s.sensor.FieldID,
		SensorID:  s.sensor.ID,
		Status:    status,
		MMApplied: s.sensor.MMPerMinute() * elapsed.Minutes(),
		Reason:    reason,
		StartedAt: s.onSince,
		Timestamp: s.clock.Now().UTC(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("simulator: marshal result: %v", err)
		return
	}
	topic := fmt.Sprintf("event/irrigationResult/%s/%s", s.sensor.FieldID, s.sensor.ID)
	if err := s.publisher.Publish(topic, mqttbus.QoSFor(topic), payload); err != nil {
		log.Printf("simulator: publish result: %v", err)
	}
}
