package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/agrosmart/cropwater/internal/model/messages"
)

// ReadingProvider supplies one EnvironmentalReading per decision cycle. The
// live deployment feeds the controller from telemetry; a file-backed provider
// replays recorded readings through the same engine.
type ReadingProvider interface {
	Next(ctx context.Context) (messages.EnvironmentalReading, error)
}

// FileProvider replays a JSON array of readings in order, returning io.EOF
// once exhausted.
type FileProvider struct {
	mu       sync.Mutex
	readings []messages.EnvironmentalReading
	pos      int
}

// NewSliceProvider wraps in-memory readings in the provider capability.
func NewSliceProvider(readings []messages.EnvironmentalReading) *FileProvider {
	return &FileProvider{readings: readings}
}

// NewFileProvider loads the readings from path.
func NewFileProvider(path string) (*FileProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("provider: read %s: %w", path, err)
	}
	var readings []messages.EnvironmentalReading
	if err := json.Unmarshal(raw, &readings); err != nil {
		return nil, fmt.Errorf("provider: decode %s: %w", path, err)
	}
	return &FileProvider{readings: readings}, nil
}

func (p *FileProvider) Next(ctx context.Context) (messages.EnvironmentalReading, error) {
	if err := ctx.Err(); err != nil {
		return messages.EnvironmentalReading{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos >= len(p.readings) {
		return messages.EnvironmentalReading{}, io.EOF
	}
	r := p.readings[p.pos]
	p.pos++
	return r, nil
}
