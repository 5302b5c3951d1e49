package messages

// EnvironmentalReading is the per-cycle input to the decision engine: one
// moisture/temperature sample plus the forecast extremes the evapotranspiration
// estimate needs. It is assembled by the caller, never by the engine.
type EnvironmentalReading struct {
	DayAfterSowing     int     `json:"day_after_sowing"`
	CurrentTemperature float64 `json:"current_temperature"` // °C, instantaneous
	ForecastMaxTemp    float64 `json:"forecast_max_temp"`   // °C
	ForecastMinTemp    float64 `json:"forecast_min_temp"`   // °C
	CurrentMoisturePct float64 `json:"current_moisture_pct"`
}
