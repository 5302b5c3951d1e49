package solar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrosmart/cropwater/internal/model"
)

func TestEstimate(t *testing.T) {
	t.Run("summer day at reference site", func(t *testing.T) {
		et0, err := Estimate(196, 26.9, 35.0, 22.0)
		require.NoError(t, err)
		assert.Equal(t, 15.46, et0)
	})

	t.Run("spring day", func(t *testing.T) {
		et0, err := Estimate(115, 26.9, 35.0, 22.0)
		require.NoError(t, err)
		assert.Equal(t, 14.74, et0)
	})

	t.Run("mild winter day stays under buffer threshold", func(t *testing.T) {
		et0, err := Estimate(15, 26.9, 18.0, 10.0)
		require.NoError(t, err)
		assert.Equal(t, 4.74, et0)
	})

	t.Run("zero diurnal range gives zero demand", func(t *testing.T) {
		et0, err := Estimate(100, 26.9, 20.0, 20.0)
		require.NoError(t, err)
		assert.Equal(t, 0.0, et0)
	})

	t.Run("inverted forecast pair rejected", func(t *testing.T) {
		_, err := Estimate(100, 26.9, 18.0, 22.0)
		var ve *model.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("polar day rejected, never NaN", func(t *testing.T) {
		et0, err := Estimate(172, 70.0, 20.0, 10.0)
		var ve *model.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.False(t, math.IsNaN(et0))
		assert.Equal(t, 0.0, et0)
	})

	t.Run("polar night rejected", func(t *testing.T) {
		_, err := Estimate(355, 70.0, -5.0, -15.0)
		var ve *model.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("high latitude inside the valid domain still works", func(t *testing.T) {
		et0, err := Estimate(172, 60.0, 20.0, 10.0)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(et0))
		assert.Greater(t, et0, 0.0)
	})

	t.Run("idempotent", func(t *testing.T) {
		a, err := Estimate(200, 45.0, 30.0, 15.0)
		require.NoError(t, err)
		b, err := Estimate(200, 45.0, 30.0, 15.0)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("latitude changes the estimate", func(t *testing.T) {
		low, err := Estimate(196, 10.0, 35.0, 22.0)
		require.NoError(t, err)
		high, err := Estimate(196, 50.0, 35.0, 22.0)
		require.NoError(t, err)
		assert.NotEqual(t, low, high)
	})
}
