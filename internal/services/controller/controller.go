// Package controller hosts the per-cycle decision loop: it consumes
// aggregated soil readings, enriches them with forecast extremes, runs the
// decision engine and publishes the outcome for actuation and telemetry.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"

	"github.com/agrosmart/cropwater/internal/engine"
	"github.com/agrosmart/cropwater/internal/model"
	"github.com/agrosmart/cropwater/internal/observability"
	"github.com/agrosmart/cropwater/internal/services/forecast"
	"github.com/agrosmart/cropwater/pkg/dedup"
	"github.com/agrosmart/cropwater/pkg/mqttbus"
)

// Options are the controller's collaborators and settings.
type Options struct {
	Consumer  mqttbus.IConsumer
	Publisher mqttbus.IPublisher
	Forecast  forecast.Provider
	Engine    *engine.Engine
	Sensors   map[string]map[string]model.Sensor // field -> sensorID -> Sensor
	Metrics   *observability.Metrics

	SowingDate        time.Time
	ForecastTimeout   time.Duration
	DecisionTopicTmpl string
	StateTopicTmpl    string

	Clock clockwork.Clock
}

type Controller struct {
	consumer  mqttbus.IConsumer
	publisher mqttbus.IPublisher
	wclient   forecast.Provider
	eng       *engine.Engine
	metrics   *observability.Metrics

	sowing          time.Time
	forecastTimeout time.Duration
	decisionTmpl    string
	stateTmpl       string

	clock   clockwork.Clock
	deduper *dedup.Deduper

	mu      sync.RWMutex
	sensors map[string]map[string]model.Sensor
}

// New wires a controller. The engine, forecast provider and transport are
// required; the clock defaults to real time.
func New(opts Options) (*Controller, error) {
	if opts.Engine == nil {
		return nil, errors.New("controller: engine is nil")
	}
	if opts.Forecast == nil {
		return nil, errors.New("controller: forecast provider is nil")
	}
	if opts.Consumer == nil || opts.Publisher == nil {
		return nil, errors.New("controller: transport is nil")
	}
	if opts.SowingDate.IsZero() {
		return nil, errors.New("controller: sowing date is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}
	if opts.ForecastTimeout <= 0 {
		opts.ForecastTimeout = 5 * time.Second
	}

	c := &Controller{
		consumer:        opts.Consumer,
		publisher:       opts.Publisher,
		wclient:         opts.Forecast,
		eng:             opts.Engine,
		metrics:         opts.Metrics,
		sowing:          opts.SowingDate.UTC().Truncate(24 * time.Hour),
		forecastTimeout: opts.ForecastTimeout,
		decisionTmpl:    firstNonEmpty(opts.DecisionTopicTmpl, "event/irrigationDecision/{field}/{sensor}"),
		stateTmpl:       firstNonEmpty(opts.StateTopicTmpl, "event/stateChange/{field}/{sensor}"),
		clock:           opts.Clock,
		deduper:         dedup.New(10*time.Minute, 20000),
		sensors:         opts.Sensors,
	}
	c.consumer.SetHandler(c.handleAggregated)
	return c, nil
}

// Start consumes aggregated readings until the context is cancelled. A
// subscribe failure is returned immediately so the process can exit rather
// than idle without input.
func (c *Controller) Start(ctx context.Context) error {
	c.metrics.ControllerUp.Set(1)
	defer c.metrics.ControllerUp.Set(0)

	errCh := make(chan error, 1)
	go func() { errCh <- c.consumer.Consume(ctx) }()

	for {
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("controller: consume: %w", err)
			}
			errCh = nil
		case <-ctx.Done():
			return nil
		}
	}
}

// RunProvider drives the same decision path from a pull-based reading source,
// one cycle per interval. Used for replaying recorded readings; it returns
// nil when the provider is exhausted.
func (c *Controller) RunProvider(ctx context.Context, p engine.ReadingProvider, sensor model.Sensor, interval time.Duration) error {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			reading, err := p.Next(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := c.decideAndPublish(sensor, reading); err != nil {
				log.Printf("controller: replay cycle %s/%s: %v", sensor.FieldID, sensor.ID, err)
			}
		}
	}
}

// handleAggregated runs one decision cycle from an aggregated sample.
// QoS1 redeliveries are dropped before decoding.
func (c *Controller) handleAggregated(_ string, msg mqtt.Message) error {
	if c.deduper.Seen(msg.Payload()) {
		return nil
	}

	var sd model.SensorData
	if err := json.Unmarshal(msg.Payload(), &sd); err != nil {
		c.metrics.CycleErrors.WithLabelValues("decode").Inc()
		log.Printf("controller: bad payload: %v", err)
		return nil
	}
	if !sd.Aggregated {
		return nil
	}

	sensor, ok := c.lookupSensor(sd.FieldID, sd.SensorID)
	if !ok {
		log.Printf("controller: unknown sensor %s/%s", sd.FieldID, sd.SensorID)
		return nil
	}

	now := c.clock.Now().UTC()

	fctx, cancel := context.WithTimeout(context.Background(), c.forecastTimeout)
	defer cancel()
	fx, err := c.wclient.Extremes(fctx, sensor.Latitude, sensor.Longitude, now)
	if err != nil {
		// no default extremes: a cycle without a forecast is skipped, not guessed
		c.metrics.CycleErrors.WithLabelValues("forecast").Inc()
		return fmt.Errorf("forecast for %s/%s: %w", sd.FieldID, sd.SensorID, err)
	}

	reading := model.EnvironmentalReading{
		DayAfterSowing:     c.dayAfterSowing(now),
		CurrentTemperature: sd.TemperatureC,
		ForecastMaxTemp:    fx.TMaxC,
		ForecastMinTemp:    fx.TMinC,
		CurrentMoisturePct: sd.MoisturePct,
	}
	return c.decideAndPublish(sensor, reading)
}

func (c *Controller) decideAndPublish(sensor model.Sensor, reading model.EnvironmentalReading) error {
	c.metrics.CyclesTotal.Inc()
	started := time.Now()
	defer func() {
		c.metrics.CycleDur.Observe(time.Since(started).Seconds())
	}()

	now := c.clock.Now().UTC()
	res, err := c.eng.Decide(reading, now.YearDay())
	if err != nil {
		c.metrics.CycleErrors.WithLabelValues(errorKind(err)).Inc()
		return err
	}

	c.metrics.ET0.Observe(res.SolarDemandET0)
	c.metrics.WaterMM.Observe(res.WaterRequiredMM)

	evt := model.DecisionEvent{
		FieldID:            sensor.FieldID,
		SensorID:           sensor.ID,
		Stage:              res.StageName,
		Condition:          res.Condition,
		SolarDemandET0:     res.SolarDemandET0,
		TargetMoisturePct:  res.TargetMoisturePct,
		CurrentMoisturePct: res.CurrentMoisturePct,
		WaterRequiredMM:    res.WaterRequiredMM,
		Timestamp:          now,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		c.metrics.CycleErrors.WithLabelValues("encode").Inc()
		return fmt.Errorf("encode decision: %w", err)
	}
	topic := expandTopic(c.decisionTmpl, sensor.FieldID, sensor.ID)
	if err := c.publisher.Publish(topic, 1, payload); err != nil {
		return fmt.Errorf("publish decision: %w", err)
	}
	c.metrics.DecisionsSent.Inc()
	log.Printf("decision: %s/%s stage=%s cond=%s et0=%.2f target=%.1f%% water=%.2fmm",
		sensor.FieldID, sensor.ID, res.StageName, res.Condition,
		res.SolarDemandET0, res.TargetMoisturePct, res.WaterRequiredMM)

	if res.WaterRequiredMM > 0 {
		return c.commandValve(sensor, res.WaterRequiredMM, now)
	}
	return nil
}

// commandValve translates a water depth into a valve-on duration using the
// sensor's flow and area, and publishes the state-change command.
func (c *Controller) commandValve(sensor model.Sensor, doseMM float64, now time.Time) error {
	mmPerMin := sensor.MMPerMinute()
	if mmPerMin <= 0 {
		log.Printf("controller: %s/%s has no usable flow/area, skipping actuation",
			sensor.FieldID, sensor.ID)
		return nil
	}
	minutes := int(math.Round(doseMM / mmPerMin))
	if minutes <= 0 {
		minutes = 1
	}

	evt := model.StateChangeEvent{
		FieldID:   sensor.FieldID,
		SensorID:  sensor.ID,
		NewState:  model.StateOn,
		Duration:  time.Duration(minutes) * time.Minute,
		Timestamp: now,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		c.metrics.CycleErrors.WithLabelValues("encode").Inc()
		return fmt.Errorf("encode state change: %w", err)
	}
	topic := expandTopic(c.stateTmpl, sensor.FieldID, sensor.ID)
	if err := c.publisher.Publish(topic, mqttbus.QoSFor(topic), payload); err != nil {
		return fmt.Errorf("publish state change: %w", err)
	}
	log.Printf("valve: %s/%s ON for %dmin (%.2fmm at %.4fmm/min)",
		sensor.FieldID, sensor.ID, minutes, doseMM, mmPerMin)
	return nil
}

func (c *Controller) dayAfterSowing(now time.Time) int {
	return int(now.Truncate(24*time.Hour).Sub(c.sowing).Hours() / 24)
}

func (c *Controller) lookupSensor(fieldID, sensorID string) (model.Sensor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.sensors[fieldID]; ok {
		if s, ok2 := m[sensorID]; ok2 {
			return s, true
		}
	}
	return model.Sensor{}, false
}

func errorKind(err error) string {
	var use *model.UndefinedStageError
	if errors.As(err, &use) {
		return "undefined_stage"
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return "validation"
	}
	return "other"
}

func expandTopic(tmpl, fieldID, sensorID string) string {
	return strings.NewReplacer("{field}", fieldID, "{sensor}", sensorID).Replace(tmpl)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
