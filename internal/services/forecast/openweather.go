// Package forecast fetches the daily temperature extremes the decision engine
// feeds into its evapotranspiration estimate.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// DailyExtremes are one forecast day's temperature bounds plus the expected
// rain, in metric units.
type DailyExtremes struct {
	TMaxC  float64
	TMinC  float64
	RainMM float64
}

// Provider supplies the forecast extremes for a site and date. The controller
// depends on this interface so cycles can run against a stub offline.
type Provider interface {
	Extremes(ctx context.Context, lat, lon float64, day time.Time) (DailyExtremes, error)
}

const defaultBaseURL = "https://api.openweathermap.org/data/3.0"

type owmDaily struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"temp"`
	Rain float64 `json:"rain"`
}

type owmResp struct {
	Daily []owmDaily `json:"daily"`
}

// OWMClient queries the OpenWeather One Call API behind a circuit breaker:
// when the upstream misbehaves the breaker fails fast and the caller skips
// the cycle instead of piling up timeouts.
type OWMClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

var _ Provider = (*OWMClient)(nil)

// NewOWMClient builds a client with the given API key and request timeout.
func NewOWMClient(apiKey string, timeout time.Duration) *OWMClient {
	return &OWMClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "openweather",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

// SetBaseURL overrides the API endpoint; used by tests.
func (c *OWMClient) SetBaseURL(u string) { c.baseURL = u }

// Extremes returns the forecast day closest to the requested date among the
// days the API offers.
func (c *OWMClient) Extremes(ctx context.Context, lat, lon float64, day time.Time) (DailyExtremes, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, lat, lon, day)
	})
	if err != nil {
		return DailyExtremes{}, err
	}
	return out.(DailyExtremes), nil
}

func (c *OWMClient) fetch(ctx context.Context, lat, lon float64, day time.Time) (DailyExtremes, error) {
	if c.apiKey == "" {
		return DailyExtremes{}, fmt.Errorf("forecast: missing api key")
	}
	url := fmt.Sprintf("%s/onecall?lat=%f&lon=%f&exclude=current,minutely,hourly,alerts&units=metric&appid=%s",
		c.baseURL, lat, lon, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return DailyExtremes{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return DailyExtremes{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return DailyExtremes{}, fmt.Errorf("forecast: owm status %d: %s", resp.StatusCode, string(b))
	}

	var out owmResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return DailyExtremes{}, err
	}
	if len(out.Daily) == 0 {
		return DailyExtremes{}, fmt.Errorf("forecast: no daily data")
	}

	target := day.UTC().Truncate(24 * time.Hour)
	chosen := out.Daily[0]
	minDelta := time.Duration(1<<63 - 1)
	for _, d := range out.Daily {
		date := time.Unix(d.Dt, 0).UTC().Truncate(24 * time.Hour)
		delta := target.Sub(date)
		if delta < 0 {
			delta = -delta
		}
		if delta < minDelta {
			minDelta = delta
			chosen = d
		}
	}

	return DailyExtremes{TMaxC: chosen.Temp.Max, TMinC: chosen.Temp.Min, RainMM: chosen.Rain}, nil
}
