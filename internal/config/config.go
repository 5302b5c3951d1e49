// Package config reads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agrosmart/cropwater/internal/model/entities"
	"github.com/agrosmart/cropwater/pkg/mqttbus"
)

// Controller holds everything the irrigation controller needs to run.
type Controller struct {
	Broker mqttbus.Config

	AggregatedTopic   string
	DecisionTopicTmpl string // "{field}"/"{sensor}" placeholders
	StateTopicTmpl    string

	SchedulePath string
	SensorsPath  string
	SowingDate   time.Time

	Site entities.SiteConfig

	OWMAPIKey       string
	ForecastTimeout time.Duration

	HTTPAddr string
}

// Load populates the controller configuration, applying the reference-site
// defaults where unset.
func Load() (*Controller, error) {
	site := entities.DefaultSiteConfig()
	var err error
	if site.FieldCapacityPct, err = envFloat("SITE_FIELD_CAPACITY_PCT", site.FieldCapacityPct); err != nil {
		return nil, err
	}
	if site.WiltingPointPct, err = envFloat("SITE_WILTING_POINT_PCT", site.WiltingPointPct); err != nil {
		return nil, err
	}
	if site.LatitudeDegrees, err = envFloat("SITE_LATITUDE_DEG", site.LatitudeDegrees); err != nil {
		return nil, err
	}
	if site.HeatOvershootMultiplier, err = envFloat("HEAT_OVERSHOOT_MULTIPLIER", site.HeatOvershootMultiplier); err != nil {
		return nil, err
	}
	if site.ETBufferThreshold, err = envFloat("ET_BUFFER_THRESHOLD", site.ETBufferThreshold); err != nil {
		return nil, err
	}
	if site.ETBufferValue, err = envFloat("ET_BUFFER_VALUE", site.ETBufferValue); err != nil {
		return nil, err
	}
	if site.MoistureCeilingPct, err = envFloat("MOISTURE_CEILING_PCT", site.MoistureCeilingPct); err != nil {
		return nil, err
	}

	sowingRaw := envStr("SOWING_DATE", "")
	if sowingRaw == "" {
		return nil, errors.New("SOWING_DATE is required (YYYY-MM-DD)")
	}
	sowing, err := time.Parse("2006-01-02", sowingRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid SOWING_DATE %q: %w", sowingRaw, err)
	}

	forecastTimeout, err := time.ParseDuration(envStr("FORECAST_TIMEOUT", "5s"))
	if err != nil || forecastTimeout <= 0 {
		return nil, errors.New("invalid FORECAST_TIMEOUT")
	}

	cfg := &Controller{
		Broker: mqttbus.Config{
			Host:     envStr("MQTT_HOST", "localhost"),
			Port:     envIntDef("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", "guest"),
			Password: envStr("MQTT_PASSWORD", "guest"),
			ClientID: envStr("MQTT_CLIENT_ID", "irrigation-controller"),
		},
		AggregatedTopic:   envStr("AGGREGATED_SUB_TOPIC", "sensor/aggregated/#"),
		DecisionTopicTmpl: envStr("DECISION_TOPIC_TMPL", "event/irrigationDecision/{field}/{sensor}"),
		StateTopicTmpl:    envStr("STATE_TOPIC_TMPL", "event/stateChange/{field}/{sensor}"),
		SchedulePath:      envStr("SCHEDULE_CONFIG_PATH", "/app/config/crop-schedule.json"),
		SensorsPath:       envStr("SENSORS_CONFIG_PATH", "/app/config/sensors-config.json"),
		SowingDate:        sowing,
		Site:              site,
		OWMAPIKey:         os.Getenv("OWM_API_KEY"),
		ForecastTimeout:   forecastTimeout,
		HTTPAddr:          envStr("HTTP_ADDR", ":8080"),
	}

	if cfg.OWMAPIKey == "" {
		return nil, errors.New("OWM_API_KEY is required")
	}
	if cfg.Site.FieldCapacityPct <= cfg.Site.WiltingPointPct {
		return nil, errors.New("SITE_FIELD_CAPACITY_PCT must exceed SITE_WILTING_POINT_PCT")
	}

	return cfg, nil
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envIntDef(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}
