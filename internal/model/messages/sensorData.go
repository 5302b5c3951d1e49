package messages

import (
	"time"
)

// SensorData holds both real-time and aggregated probe samples.
type SensorData struct {
	FieldID      string    `json:"field_id"`
	SensorID     string    `json:"sensor_id"`
	MoisturePct  float64   `json:"moisture_pct"`
	TemperatureC float64   `json:"temperature_c"`
	Aggregated   bool      `json:"aggregated"`
	Timestamp    time.Time `json:"timestamp"`
}
