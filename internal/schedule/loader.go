package schedule

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads stage records from a JSON config file and builds the table.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schedule: read %s: %w", path, err)
	}
	var records []StageRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("schedule: decode %s: %w", path, err)
	}
	return Build(records)
}
