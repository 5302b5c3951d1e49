package messages

import (
	"time"

	"github.com/agrosmart/cropwater/internal/model/entities"
)

// DecisionEvent is published by the controller to record WHY/WHAT was decided
// for one sensor in one cycle.
type DecisionEvent struct {
	FieldID            string             `json:"field_id"`
	SensorID           string             `json:"sensor_id"`
	Stage              string             `json:"stage"`
	Condition          entities.Condition `json:"condition"`
	SolarDemandET0     float64            `json:"solar_demand_et0"`
	TargetMoisturePct  float64            `json:"target_moisture_pct"`
	CurrentMoisturePct float64            `json:"current_moisture_pct"`
	WaterRequiredMM    float64            `json:"water_required_mm"`
	Timestamp          time.Time          `json:"timestamp"`
}
