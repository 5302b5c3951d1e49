package messages

import "time"

// IrrigationResultEvent reports the end (or failure) of one watering cycle.
type IrrigationResultEvent struct {
	FieldID   string    `json:"field_id"`
	SensorID  string    `json:"sensor_id"`
	Status    string    `json:"status"`     // "OK" | "FAIL"
	MMApplied float64   `json:"mm_applied"` // mm actually delivered (>=0)
	Reason    string    `json:"reason"`     // "done" | "aborted"
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}
