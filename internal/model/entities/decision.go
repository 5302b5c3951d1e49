package entities

// Condition classifies the thermal state of a decision cycle.
type Condition string

const (
	ConditionNormal     Condition = "Normal"
	ConditionHeatStress Condition = "HeatStress"
)

// DecisionResult is the outcome of one decision cycle. The engine does not
// retain it; the caller hands it to an actuation or telemetry collaborator.
type DecisionResult struct {
	StageName          string    `json:"stage_name"`
	Condition          Condition `json:"condition"`
	SolarDemandET0     float64   `json:"solar_demand_et0"` // mm/day
	TargetMoisturePct  float64   `json:"target_moisture_pct"`
	CurrentMoisturePct float64   `json:"current_moisture_pct"`
	WaterRequiredMM    float64   `json:"water_required_mm"`
}
