package entities

// StageDefinition describes one growth phase of the crop. Instances are
// built once from reference data and never mutated afterwards.
type StageDefinition struct {
	StageName          string  `json:"stage_name"`           // e.g. "Silking"
	DayStart           int     `json:"day_start"`            // inclusive, days after sowing
	DayEnd             int     `json:"day_end"`              // exclusive
	MoistureTargetBase float64 `json:"moisture_target_base"` // mean of the stage's target range, %
	TempMaxReference   float64 `json:"temp_max_reference"`   // upper comfortable temperature, °C
	RootDepthMM        float64 `json:"root_depth_mm"`        // effective root depth
}

// Contains reports whether a day-after-sowing falls in [DayStart, DayEnd).
func (s StageDefinition) Contains(day int) bool {
	return day >= s.DayStart && day < s.DayEnd
}
