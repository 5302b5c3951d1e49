package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// Decision is the payload shape the latest-decisions endpoint exposes.
type Decision struct {
	SensorID string  `json:"sensor_id,omitempty"`
	WaterMM  float64 `json:"water_mm"`
	Time     string  `json:"time"` // RFC3339
}

type queryParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseParams(r *http.Request, defMin, defLim, defTOms int) queryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return queryParams{
		Minutes:   get("minutes", defMin, 1, 7*24*60),
		Limit:     get("limit", defLim, 1, 500),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
	}
}

func buildFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == "irrigation_event" and r.event_type == "irrigation.decision")
  |> filter(fn: (r) => r._field == "water_mm")
  |> keep(columns: ["_time","_value","sensor_id"])
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, limit)
}

// NewLatestDecisionsHandler serves GET /decisions/latest?limit=20[&minutes=1440].
func NewLatestDecisionsHandler(influx influxdb2.Client, org, bucket string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseParams(r, 1440, 20, 2000)

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		res, err := influx.QueryAPI(org).Query(ctx, buildFlux(bucket, p.Minutes, p.Limit))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Error", "influx-query-error")
			_, _ = w.Write([]byte("[]"))
			return
		}
		defer func() { _ = res.Close() }()

		out := make([]Decision, 0, p.Limit)
		for res.Next() {
			rec := res.Record()

			var waterMM float64
			switch v := rec.Value().(type) {
			case float64:
				waterMM = v
			case int64:
				waterMM = float64(v)
			}

			var sensorID string
			if v := rec.ValueByKey("sensor_id"); v != nil {
				if s, ok := v.(string); ok {
					sensorID = s
				}
			}

			out = append(out, Decision{
				SensorID: sensorID,
				WaterMM:  waterMM,
				Time:     rec.Time().UTC().Format(time.RFC3339),
			})
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}
