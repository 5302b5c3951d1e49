package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults with required vars set", func(t *testing.T) {
		t.Setenv("SOWING_DATE", "2026-03-15")
		t.Setenv("OWM_API_KEY", "test-key")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "localhost", cfg.Broker.Host)
		assert.Equal(t, 1883, cfg.Broker.Port)
		assert.Equal(t, "sensor/aggregated/#", cfg.AggregatedTopic)
		assert.Equal(t, 32.0, cfg.Site.FieldCapacityPct)
		assert.Equal(t, 26.9, cfg.Site.LatitudeDegrees)
		assert.Equal(t, 5.5, cfg.Site.ETBufferThreshold)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), cfg.SowingDate)
		assert.Equal(t, 5*time.Second, cfg.ForecastTimeout)
	})

	t.Run("site overrides", func(t *testing.T) {
		t.Setenv("SOWING_DATE", "2026-03-15")
		t.Setenv("OWM_API_KEY", "test-key")
		t.Setenv("SITE_LATITUDE_DEG", "41.9")
		t.Setenv("SITE_FIELD_CAPACITY_PCT", "36")
		t.Setenv("SITE_WILTING_POINT_PCT", "14")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 41.9, cfg.Site.LatitudeDegrees)
		assert.InDelta(t, 0.22, cfg.Site.AvailableWaterFraction(), 1e-9)
	})

	t.Run("missing sowing date", func(t *testing.T) {
		t.Setenv("OWM_API_KEY", "test-key")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv("SOWING_DATE", "2026-03-15")
		t.Setenv("OWM_API_KEY", "")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("inverted soil bounds rejected", func(t *testing.T) {
		t.Setenv("SOWING_DATE", "2026-03-15")
		t.Setenv("OWM_API_KEY", "test-key")
		t.Setenv("SITE_FIELD_CAPACITY_PCT", "15")
		t.Setenv("SITE_WILTING_POINT_PCT", "20")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("malformed float", func(t *testing.T) {
		t.Setenv("SOWING_DATE", "2026-03-15")
		t.Setenv("OWM_API_KEY", "test-key")
		t.Setenv("SITE_LATITUDE_DEG", "north")
		_, err := Load()
		require.Error(t, err)
	})
}
