// Package simulator emulates one field probe: it walks soil moisture and
// air temperature over time and obeys valve commands from the controller,
// so the full decision loop can run without hardware.
package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/agrosmart/cropwater/internal/model"
)

// GeneratorConfig seeds the walk. Zero values fall back to defaults that
// produce a plausible mid-season probe.
type GeneratorConfig struct {
	SeedMoisturePct float64 // starting soil moisture, default 30
	DecayPctPerMin  float64 // moisture lost per minute while the valve is off
	GainPctPerMin   float64 // moisture gained per minute while the valve is on
	BaseTempC       float64 // daily mean air temperature
	TempSwingC      float64 // half-amplitude of the diurnal cycle
}

func (c *GeneratorConfig) applyDefaults() {
	if c.SeedMoisturePct == 0 {
		c.SeedMoisturePct = 30
	}
	if c.DecayPctPerMin == 0 {
		c.DecayPctPerMin = 0.05
	}
	if c.GainPctPerMin == 0 {
		c.GainPctPerMin = 0.6
	}
	if c.BaseTempC == 0 {
		c.BaseTempC = 27
	}
	if c.TempSwingC == 0 {
		c.TempSwingC = 7
	}
}

// Generator holds the probe state and advances it on every Next call.
type Generator struct {
	mu    sync.Mutex
	cfg   GeneratorConfig
	clock clockwork.Clock
	rng   *rand.Rand

	seeded      bool
	last        time.Time
	moisturePct float64
}

type GeneratorOption func(*Generator)

func WithGeneratorClock(c clockwork.Clock) GeneratorOption {
	return func(g *Generator) { g.clock = c }
}

func WithRand(r *rand.Rand) GeneratorOption {
	return func(g *Generator) { g.rng = r }
}

func NewGenerator(cfg GeneratorConfig, opts ...GeneratorOption) *Generator {
	cfg.applyDefaults()
	g := &Generator{
		cfg:   cfg,
		clock: clockwork.NewRealClock(),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next advances the walk to now and returns a raw (non-aggregated) sample
// for the sensor.
func (g *Generator) Next(sensor *model.Sensor) model.SensorData {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now().UTC()
	if !g.seeded {
		g.moisturePct = clampPct(g.cfg.SeedMoisturePct)
		g.last = now
		g.seeded = true
	}

	dtMin := now.Sub(g.last).Minutes()
	if dtMin < 0 {
		dtMin = 0
	}
	if sensor.State == model.StateOn {
		g.moisturePct = clampPct(g.moisturePct + g.cfg.GainPctPerMin*dtMin)
	} else {
		g.moisturePct = clampPct(g.moisturePct - g.cfg.DecayPctPerMin*dtMin)
	}
	g.last = now

	return model.SensorData{
		FieldID:      sensor.FieldID,
		SensorID:     sensor.ID,
		MoisturePct:  g.moisturePct,
		TemperatureC: g.temperatureAt(now),
		Aggregated:   false,
		Timestamp:    now,
	}
}

// MoisturePct reports the current walk position without advancing it.
func (g *Generator) MoisturePct() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seeded {
		return clampPct(g.cfg.SeedMoisturePct)
	}
	return g.moisturePct
}

// temperatureAt follows a daily sinusoid peaking mid-afternoon, with a
// little jitter so consecutive samples are not identical.
func (g *Generator) temperatureAt(now time.Time) float64 {
	hour := float64(now.Hour()) + float64(now.Minute())/60.0
	phase := 2 * math.Pi * (hour - 15.0) / 24.0
	jitter := (g.rng.Float64() - 0.5) * 0.6
	return g.cfg.BaseTempC + g.cfg.TempSwingC*math.Cos(phase) + jitter
}

func clampPct(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}
