// Package telemetry persists decision and actuation events for dashboards
// and audits. It is a collaborator of the decision engine, never part of it:
// a write failure here cannot affect a decision cycle.
package telemetry

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	msg "github.com/agrosmart/cropwater/internal/model/messages"
)

// CommonEvent is the normalized form every inbound event is reduced to
// before it becomes an InfluxDB point.
type CommonEvent struct {
	EventType     string // irrigation.decision | device.state_change | irrigation.result
	SourceService string
	FieldID       string
	SensorID      string
	Severity      string // info|warning
	Fields        map[string]interface{}
	Timestamp     time.Time
}

// MQTTHandler turns MQTT messages into CommonEvents and hands them to sink.
type MQTTHandler struct{ sink func(CommonEvent) }

func NewMQTTHandler(sink func(CommonEvent)) *MQTTHandler { return &MQTTHandler{sink: sink} }

func (h *MQTTHandler) Handle(_ string, m mqtt.Message) error {
	topic := m.Topic()

	var (
		evt CommonEvent
		err error
	)
	switch {
	case strings.HasPrefix(topic, "event/irrigationDecision/"):
		evt, err = decodeDecision(topic, m.Payload())
	case strings.HasPrefix(topic, "event/stateChange/"):
		evt, err = decodeStateChange(topic, m.Payload())
	case strings.HasPrefix(topic, "event/irrigationResult/"):
		evt, err = decodeResult(topic, m.Payload())
	default:
		return nil // not ours
	}
	if err != nil {
		return err
	}
	if h.sink != nil {
		h.sink(evt)
	}
	return nil
}

func decodeDecision(topic string, payload []byte) (CommonEvent, error) {
	var d msg.DecisionEvent
	if err := json.Unmarshal(payload, &d); err != nil {
		return CommonEvent{}, err
	}
	fieldID, sensorID := pickIDs(topic, d.FieldID, d.SensorID, "event/irrigationDecision/")
	if fieldID == "" || sensorID == "" {
		return CommonEvent{}, errors.New("decision: missing field/sensor")
	}
	return CommonEvent{
		EventType:     "irrigation.decision",
		SourceService: "controller",
		FieldID:       fieldID,
		SensorID:      sensorID,
		Severity:      "info",
		Fields: map[string]interface{}{
			"stage":            d.Stage,
			"condition":        string(d.Condition),
			"solar_demand_et0": d.SolarDemandET0,
			"target_pct":       d.TargetMoisturePct,
			"current_pct":      d.CurrentMoisturePct,
			"water_mm":         d.WaterRequiredMM,
		},
		Timestamp: d.Timestamp,
	}, nil
}

func decodeStateChange(topic string, payload []byte) (CommonEvent, error) {
	var s msg.StateChangeEvent
	if err := json.Unmarshal(payload, &s); err != nil {
		return CommonEvent{}, err
	}
	fieldID, sensorID := pickIDs(topic, s.FieldID, s.SensorID, "event/stateChange/")
	if fieldID == "" || sensorID == "" {
		return CommonEvent{}, errors.New("stateChange: missing field/sensor")
	}
	return CommonEvent{
		EventType:     "device.state_change",
		SourceService: "controller",
		FieldID:       fieldID,
		SensorID:      sensorID,
		Severity:      "info",
		Fields: map[string]interface{}{
			"new_state":    string(s.NewState),
			"duration_sec": s.Duration.Seconds(),
		},
		Timestamp: s.Timestamp,
	}, nil
}

func decodeResult(topic string, payload []byte) (CommonEvent, error) {
	var r msg.IrrigationResultEvent
	if err := json.Unmarshal(payload, &r); err != nil {
		return CommonEvent{}, err
	}
	fieldID, sensorID := pickIDs(topic, r.FieldID, r.SensorID, "event/irrigationResult/")
	if fieldID == "" || sensorID == "" {
		return CommonEvent{}, errors.New("result: missing field/sensor")
	}
	sev := "info"
	if strings.EqualFold(r.Status, "FAIL") {
		sev = "warning"
	}
	return CommonEvent{
		EventType:     "irrigation.result",
		SourceService: "sensor-simulator",
		FieldID:       fieldID,
		SensorID:      sensorID,
		Severity:      sev,
		Fields: map[string]interface{}{
			"status":     r.Status,
			"mm_applied": r.MMApplied,
			"reason":     r.Reason,
		},
		Timestamp: r.Timestamp,
	}, nil
}

// pickIDs falls back to the topic "prefix/{field}/{sensor}" when the payload
// omits the identifiers.
func pickIDs(topic, fieldID, sensorID, prefix string) (string, string) {
	if strings.TrimSpace(fieldID) != "" && strings.TrimSpace(sensorID) != "" {
		return fieldID, sensorID
	}
	parts := strings.Split(strings.TrimPrefix(topic, prefix), "/")
	if len(parts) >= 2 {
		return parts[0], parts[1]
	}
	return fieldID, sensorID
}
