package entities

// SiteConfig carries the per-deployment soil and location parameters plus the
// decision thresholds. Nothing here is a process-wide constant: the same
// engine must serve different crops and sites.
type SiteConfig struct {
	FieldCapacityPct float64 `json:"field_capacity_pct"`
	WiltingPointPct  float64 `json:"wilting_point_pct"`
	LatitudeDegrees  float64 `json:"latitude_degrees"`

	HeatOvershootMultiplier float64 `json:"heat_overshoot_multiplier"`
	ETBufferThreshold       float64 `json:"et_buffer_threshold"` // mm/day
	ETBufferValue           float64 `json:"et_buffer_value"`     // % added on high-demand days
	MoistureCeilingPct      float64 `json:"moisture_ceiling_pct"`
}

// DefaultSiteConfig returns the reference maize deployment parameters.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		FieldCapacityPct:        32.0,
		WiltingPointPct:         16.0,
		LatitudeDegrees:         26.9,
		HeatOvershootMultiplier: 2.0,
		ETBufferThreshold:       5.5,
		ETBufferValue:           5.0,
		MoistureCeilingPct:      90.0,
	}
}

// AvailableWaterFraction is the usable water between field capacity and
// wilting point, as a fraction of soil volume.
func (s SiteConfig) AvailableWaterFraction() float64 {
	return (s.FieldCapacityPct - s.WiltingPointPct) / 100.0
}
