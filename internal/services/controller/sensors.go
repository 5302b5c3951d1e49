package controller

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agrosmart/cropwater/internal/model"
)

// LoadSensors reads the field -> sensors config file into the lookup shape
// the controller uses.
func LoadSensors(path string) (map[string]map[string]model.Sensor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sensors: read %s: %w", path, err)
	}

	var byField map[string][]model.Sensor
	if err := json.Unmarshal(raw, &byField); err != nil {
		return nil, fmt.Errorf("sensors: decode %s: %w", path, err)
	}

	out := make(map[string]map[string]model.Sensor, len(byField))
	for fieldID, list := range byField {
		inner := make(map[string]model.Sensor, len(list))
		for _, s := range list {
			if s.ID == "" {
				return nil, fmt.Errorf("sensors: sensor without id in field %s", fieldID)
			}
			s.FieldID = fieldID
			inner[s.ID] = s
		}
		out[fieldID] = inner
	}
	return out, nil
}
