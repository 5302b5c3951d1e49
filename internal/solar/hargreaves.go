// Package solar estimates reference evapotranspiration (ET0) with the
// Hargreaves-Samani method: a temperature-only formula driven by latitude,
// day of year and the forecast daily temperature extremes.
package solar

import (
	"fmt"
	"math"

	"github.com/agrosmart/cropwater/internal/model"
)

// Gsc is the solar constant in MJ·m⁻²·min⁻¹.
const Gsc = 0.0820

// Estimate returns ET0 in mm/day, rounded to 2 decimal places so downstream
// threshold comparisons stay deterministic.
//
// A forecast with max below min is corrupt input and yields a
// ValidationError, never a NaN or a clamped guess.
func Estimate(dayOfYear int, latitudeDegrees, forecastMaxTemp, forecastMinTemp float64) (float64, error) {
	if forecastMaxTemp < forecastMinTemp {
		return 0, &model.ValidationError{
			Field: "forecast temperature pair",
			Reason: fmt.Sprintf("max %.1f°C below min %.1f°C",
				forecastMaxTemp, forecastMinTemp),
		}
	}

	lat := latitudeDegrees * math.Pi / 180

	// inverse relative Earth-Sun distance and solar declination
	dr := 1 + 0.033*math.Cos(2*math.Pi*float64(dayOfYear)/365)
	decl := 0.409 * math.Sin((2*math.Pi*float64(dayOfYear)/365)-1.39)

	// sunset hour angle; beyond the polar circles the sun may not set or
	// rise at all and the formula has no valid answer
	cosWs := -math.Tan(lat) * math.Tan(decl)
	if cosWs < -1 || cosWs > 1 {
		return 0, &model.ValidationError{
			Field: "latitude_degrees",
			Reason: fmt.Sprintf("no sunset hour angle at latitude %.1f° on day %d (polar day or night)",
				latitudeDegrees, dayOfYear),
		}
	}
	ws := math.Acos(cosWs)

	// extraterrestrial radiation
	ra := (24 * 60 / math.Pi) * Gsc * dr *
		(ws*math.Sin(lat)*math.Sin(decl) + math.Cos(lat)*math.Cos(decl)*math.Sin(ws))

	tMean := (forecastMaxTemp + forecastMinTemp) / 2
	et0 := 0.0023 * ra * (tMean + 17.8) * math.Sqrt(forecastMaxTemp-forecastMinTemp)

	return math.Round(et0*100) / 100, nil
}
