package model

import (
	"github.com/agrosmart/cropwater/internal/model/entities"
	"github.com/agrosmart/cropwater/internal/model/messages"
)

// Aliases exposing the common types to the services.

type (
	SensorData            = messages.SensorData
	EnvironmentalReading  = messages.EnvironmentalReading
	DecisionEvent         = messages.DecisionEvent
	StateChangeEvent      = messages.StateChangeEvent
	IrrigationResultEvent = messages.IrrigationResultEvent
	Sensor                = entities.Sensor
	SensorState           = entities.SensorState
	StageDefinition       = entities.StageDefinition
	SiteConfig            = entities.SiteConfig
	DecisionResult        = entities.DecisionResult
	Condition             = entities.Condition
)

const (
	StateOn  = entities.StateOn
	StateOff = entities.StateOff

	ConditionNormal     = entities.ConditionNormal
	ConditionHeatStress = entities.ConditionHeatStress
)
