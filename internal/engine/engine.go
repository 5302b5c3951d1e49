// Package engine turns a growth-stage target, heat stress and evaporative
// demand into one irrigation volume per cycle.
package engine

import (
	"fmt"
	"math"

	"github.com/agrosmart/cropwater/internal/model"
	"github.com/agrosmart/cropwater/internal/model/entities"
	"github.com/agrosmart/cropwater/internal/model/messages"
	"github.com/agrosmart/cropwater/internal/schedule"
	"github.com/agrosmart/cropwater/internal/solar"
)

// Engine is a pure decision function over an immutable schedule and site
// configuration. It holds no mutable state across cycles, so one instance
// may serve any number of concurrent invocations.
type Engine struct {
	table *schedule.Table
	site  entities.SiteConfig
}

// New validates the site configuration and returns an engine bound to the
// given schedule table.
func New(table *schedule.Table, site entities.SiteConfig) (*Engine, error) {
	if table == nil {
		return nil, fmt.Errorf("engine: schedule table is nil")
	}
	if site.FieldCapacityPct <= site.WiltingPointPct {
		return nil, fmt.Errorf("engine: field capacity %.1f%% must exceed wilting point %.1f%%",
			site.FieldCapacityPct, site.WiltingPointPct)
	}
	if site.LatitudeDegrees < -90 || site.LatitudeDegrees > 90 {
		return nil, fmt.Errorf("engine: latitude %.2f out of range", site.LatitudeDegrees)
	}
	if site.MoistureCeilingPct <= 0 || site.MoistureCeilingPct > 100 {
		return nil, fmt.Errorf("engine: moisture ceiling %.1f%% out of range", site.MoistureCeilingPct)
	}
	return &Engine{table: table, site: site}, nil
}

// Site returns the engine's site configuration.
func (e *Engine) Site() entities.SiteConfig { return e.site }

// Decide runs one decision cycle. Errors abort the cycle cleanly: no default
// stage is substituted and no partial result is emitted.
func (e *Engine) Decide(reading messages.EnvironmentalReading, dayOfYear int) (entities.DecisionResult, error) {
	var zero entities.DecisionResult

	if reading.DayAfterSowing < 0 {
		return zero, &model.ValidationError{Field: "day_after_sowing",
			Reason: fmt.Sprintf("%d is negative", reading.DayAfterSowing)}
	}
	if reading.CurrentMoisturePct < 0 || reading.CurrentMoisturePct > 100 {
		return zero, &model.ValidationError{Field: "current_moisture_pct",
			Reason: fmt.Sprintf("%.1f outside [0, 100]", reading.CurrentMoisturePct)}
	}

	stage, err := e.table.Lookup(reading.DayAfterSowing)
	if err != nil {
		return zero, err
	}

	heatOvershoot := math.Max(0, reading.CurrentTemperature-stage.TempMaxReference)

	et0, err := solar.Estimate(dayOfYear, e.site.LatitudeDegrees,
		reading.ForecastMaxTemp, reading.ForecastMinTemp)
	if err != nil {
		return zero, err
	}

	etBuffer := 0.0
	if et0 > e.site.ETBufferThreshold {
		etBuffer = e.site.ETBufferValue
	}

	target := stage.MoistureTargetBase + heatOvershoot*e.site.HeatOvershootMultiplier + etBuffer
	// hard ceiling: leave headroom for soil aeration
	target = math.Min(e.site.MoistureCeilingPct, target)

	waterMM := 0.0
	if reading.CurrentMoisturePct < target {
		deficitPct := target - reading.CurrentMoisturePct
		waterMM = (deficitPct / 100) * e.site.AvailableWaterFraction() * stage.RootDepthMM
	}

	condition := entities.ConditionNormal
	if heatOvershoot > 0 {
		condition = entities.ConditionHeatStress
	}

	return entities.DecisionResult{
		StageName:          stage.StageName,
		Condition:          condition,
		SolarDemandET0:     et0,
		TargetMoisturePct:  math.Round(target*10) / 10,
		CurrentMoisturePct: reading.CurrentMoisturePct,
		WaterRequiredMM:    math.Round(waterMM*100) / 100,
	}, nil
}
