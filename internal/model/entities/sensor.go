package entities

// SensorState indicates whether the irrigation valve is on or off.
type SensorState string

const (
	StateOff SensorState = "off"
	StateOn  SensorState = "on"
)

// Sensor represents a single soil probe with its attached valve.
type Sensor struct {
	FieldID   string      `json:"field_id"`
	ID        string      `json:"id"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	State     SensorState `json:"state"`
	FlowLpm   float64     `json:"flow_lpm,omitempty"` // pump flow rate [l/min]
	AreaM2    float64     `json:"area_m2,omitempty"`  // irrigated surface
}

// MMPerMinute converts the pump flow over the irrigated area into a water
// depth rate. 1 l/m² equals 1 mm.
func (s Sensor) MMPerMinute() float64 {
	if s.FlowLpm <= 0 || s.AreaM2 <= 0 {
		return 0
	}
	return s.FlowLpm / s.AreaM2
}
