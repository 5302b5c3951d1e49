package messages

import (
	"time"

	"github.com/agrosmart/cropwater/internal/model/entities"
)

// StateChangeEvent commands a new irrigation state for a sensor's valve.
type StateChangeEvent struct {
	FieldID   string               `json:"field_id"`
	SensorID  string               `json:"sensor_id"`
	NewState  entities.SensorState `json:"new_state"`
	Duration  time.Duration        `json:"duration"`
	Timestamp time.Time            `json:"timestamp"`
}
