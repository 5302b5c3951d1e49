package controller

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrosmart/cropwater/internal/engine"
	"github.com/agrosmart/cropwater/internal/model"
	"github.com/agrosmart/cropwater/internal/model/entities"
	"github.com/agrosmart/cropwater/internal/observability"
	"github.com/agrosmart/cropwater/internal/schedule"
	"github.com/agrosmart/cropwater/internal/services/forecast"
	"github.com/agrosmart/cropwater/pkg/mqttbus"
)

// ---- fakes ----

type fakeConsumer struct {
	handler mqttbus.Handler
	err     error // returned by Consume, simulating a failed subscribe
}

func (f *fakeConsumer) Consume(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return nil
}
func (f *fakeConsumer) SetHandler(h mqttbus.Handler) { f.handler = h }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	pubs []published
}

func (f *fakePublisher) Publish(topic string, qos byte, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs = append(f.pubs, published{topic, qos, payload})
	return nil
}
func (f *fakePublisher) Close() {}

func (f *fakePublisher) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]published, len(f.pubs))
	copy(out, f.pubs)
	return out
}

type fakeForecast struct {
	fx    forecast.DailyExtremes
	err   error
	calls int
}

func (f *fakeForecast) Extremes(context.Context, float64, float64, time.Time) (forecast.DailyExtremes, error) {
	f.calls++
	return f.fx, f.err
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// ---- fixtures ----

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	tbl, err := schedule.Build([]schedule.StageRecord{
		{Stage: "Germination", PeriodDays: "0-14", TempRangeC: "10-18°C", MoistureTargetRange: "50-60%", RootDepthMM: 300},
		{Stage: "Vegetative", PeriodDays: "14-60", TempRangeC: "18-26°C", MoistureTargetRange: "55-70%", RootDepthMM: 800},
		{Stage: "Silking", PeriodDays: "60-120", TempRangeC: "22-28°C", MoistureTargetRange: "60-80%", RootDepthMM: 1200},
	})
	require.NoError(t, err)
	e, err := engine.New(tbl, entities.DefaultSiteConfig())
	require.NoError(t, err)
	return e
}

func testSensors() map[string]map[string]model.Sensor {
	return map[string]map[string]model.Sensor{
		"field1": {
			"s1": {FieldID: "field1", ID: "s1", Latitude: 26.9, Longitude: 75.8, FlowLpm: 10, AreaM2: 100},
		},
	}
}

// fixed date 2026-07-15 (ordinal day 196); sowing 2026-03-22 makes day 115.
func testController(t *testing.T, fc *fakeConsumer, fp *fakePublisher, fx *fakeForecast) *Controller {
	t.Helper()
	c, err := New(Options{
		Consumer:   fc,
		Publisher:  fp,
		Forecast:   fx,
		Engine:     testEngine(t),
		Sensors:    testSensors(),
		Metrics:    observability.NewMetricsForTesting(),
		SowingDate: time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC),
		Clock:      clockwork.NewFakeClockAt(time.Date(2026, 7, 15, 14, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return c
}

func aggregatedPayload(t *testing.T, moisture, temp float64) []byte {
	t.Helper()
	raw, err := json.Marshal(model.SensorData{
		FieldID: "field1", SensorID: "s1",
		MoisturePct: moisture, TemperatureC: temp,
		Aggregated: true, Timestamp: time.Date(2026, 7, 15, 13, 58, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return raw
}

// ---- tests ----

func TestHandleAggregated(t *testing.T) {
	t.Run("full cycle publishes decision and valve command", func(t *testing.T) {
		fc := &fakeConsumer{}
		fp := &fakePublisher{}
		fx := &fakeForecast{fx: forecast.DailyExtremes{TMaxC: 35, TMinC: 22}}
		testController(t, fc, fp, fx)

		err := fc.handler("", &fakeMessage{topic: "sensor/aggregated/field1/s1",
			payload: aggregatedPayload(t, 70.0, 30.0)})
		require.NoError(t, err)

		pubs := fp.all()
		require.Len(t, pubs, 2)

		assert.Equal(t, "event/irrigationDecision/field1/s1", pubs[0].topic)
		assert.Equal(t, byte(1), pubs[0].qos)
		var evt model.DecisionEvent
		require.NoError(t, json.Unmarshal(pubs[0].payload, &evt))
		assert.Equal(t, "Silking", evt.Stage)
		assert.Equal(t, model.ConditionHeatStress, evt.Condition)
		assert.Equal(t, 15.46, evt.SolarDemandET0)
		assert.Equal(t, 79.0, evt.TargetMoisturePct)
		assert.Equal(t, 17.28, evt.WaterRequiredMM)

		assert.Equal(t, "event/stateChange/field1/s1", pubs[1].topic)
		var sc model.StateChangeEvent
		require.NoError(t, json.Unmarshal(pubs[1].payload, &sc))
		assert.Equal(t, model.StateOn, sc.NewState)
		// 17.28mm at 0.1 mm/min
		assert.Equal(t, 173*time.Minute, sc.Duration)
	})

	t.Run("saturated soil publishes decision only", func(t *testing.T) {
		fc := &fakeConsumer{}
		fp := &fakePublisher{}
		fx := &fakeForecast{fx: forecast.DailyExtremes{TMaxC: 35, TMinC: 22}}
		testController(t, fc, fp, fx)

		err := fc.handler("", &fakeMessage{payload: aggregatedPayload(t, 88.0, 30.0)})
		require.NoError(t, err)

		pubs := fp.all()
		require.Len(t, pubs, 1)
		var evt model.DecisionEvent
		require.NoError(t, json.Unmarshal(pubs[0].payload, &evt))
		assert.Equal(t, 0.0, evt.WaterRequiredMM)
	})

	t.Run("redelivered payload is dropped", func(t *testing.T) {
		fc := &fakeConsumer{}
		fp := &fakePublisher{}
		fx := &fakeForecast{fx: forecast.DailyExtremes{TMaxC: 35, TMinC: 22}}
		testController(t, fc, fp, fx)

		payload := aggregatedPayload(t, 70.0, 30.0)
		require.NoError(t, fc.handler("", &fakeMessage{payload: payload}))
		require.NoError(t, fc.handler("", &fakeMessage{payload: payload}))

		assert.Equal(t, 1, fx.calls)
		assert.Len(t, fp.all(), 2) // decision + valve from the first delivery only
	})

	t.Run("non-aggregated sample ignored", func(t *testing.T) {
		fc := &fakeConsumer{}
		fp := &fakePublisher{}
		fx := &fakeForecast{fx: forecast.DailyExtremes{TMaxC: 35, TMinC: 22}}
		testController(t, fc, fp, fx)

		raw, err := json.Marshal(model.SensorData{FieldID: "field1", SensorID: "s1",
			MoisturePct: 40, Aggregated: false})
		require.NoError(t, err)
		require.NoError(t, fc.handler("", &fakeMessage{payload: raw}))
		assert.Empty(t, fp.all())
		assert.Zero(t, fx.calls)
	})

	t.Run("unknown sensor ignored", func(t *testing.T) {
		fc := &fakeConsumer{}
		fp := &fakePublisher{}
		fx := &fakeForecast{fx: forecast.DailyExtremes{TMaxC: 35, TMinC: 22}}
		testController(t, fc, fp, fx)

		raw, err := json.Marshal(model.SensorData{FieldID: "field9", SensorID: "sX",
			MoisturePct: 40, Aggregated: true})
		require.NoError(t, err)
		require.NoError(t, fc.handler("", &fakeMessage{payload: raw}))
		assert.Empty(t, fp.all())
	})

	t.Run("forecast failure aborts the cycle without defaults", func(t *testing.T) {
		fc := &fakeConsumer{}
		fp := &fakePublisher{}
		fx := &fakeForecast{err: errors.New("upstream down")}
		testController(t, fc, fp, fx)

		err := fc.handler("", &fakeMessage{payload: aggregatedPayload(t, 70.0, 30.0)})
		require.Error(t, err)
		assert.Empty(t, fp.all())
	})

	t.Run("unencodable decision is an error, not a silent drop", func(t *testing.T) {
		fc := &fakeConsumer{}
		fp := &fakePublisher{}
		// NaN extremes survive the estimator's range checks but poison the
		// result, which JSON cannot encode
		fx := &fakeForecast{fx: forecast.DailyExtremes{TMaxC: math.NaN(), TMinC: 22}}
		testController(t, fc, fp, fx)

		err := fc.handler("", &fakeMessage{payload: aggregatedPayload(t, 70.0, 30.0)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "encode decision")
		assert.Empty(t, fp.all())
	})

	t.Run("inverted forecast pair aborts the cycle", func(t *testing.T) {
		fc := &fakeConsumer{}
		fp := &fakePublisher{}
		fx := &fakeForecast{fx: forecast.DailyExtremes{TMaxC: 18, TMinC: 22}}
		testController(t, fc, fp, fx)

		err := fc.handler("", &fakeMessage{payload: aggregatedPayload(t, 70.0, 30.0)})
		var ve *model.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Empty(t, fp.all())
	})
}

func TestStartSurfacesSubscribeFailure(t *testing.T) {
	fc := &fakeConsumer{err: errors.New("subscribe refused")}
	fp := &fakePublisher{}
	fx := &fakeForecast{}
	c := testController(t, fc, fp, fx)

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribe refused")
}

func TestRunProvider(t *testing.T) {
	fc := &fakeConsumer{}
	fp := &fakePublisher{}
	fx := &fakeForecast{}

	c, err := New(Options{
		Consumer:   fc,
		Publisher:  fp,
		Forecast:   fx,
		Engine:     testEngine(t),
		Sensors:    testSensors(),
		Metrics:    observability.NewMetricsForTesting(),
		SowingDate: time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	readings := []model.EnvironmentalReading{
		{DayAfterSowing: 115, CurrentTemperature: 30, ForecastMaxTemp: 35, ForecastMinTemp: 22, CurrentMoisturePct: 70},
		{DayAfterSowing: 300, CurrentTemperature: 25, ForecastMaxTemp: 30, ForecastMinTemp: 20, CurrentMoisturePct: 50}, // past the schedule: skipped, not fatal
		{DayAfterSowing: 116, CurrentTemperature: 24, ForecastMaxTemp: 33, ForecastMinTemp: 21, CurrentMoisturePct: 85},
	}
	p := engine.NewSliceProvider(readings)

	sensor := testSensors()["field1"]["s1"]
	err = c.RunProvider(context.Background(), p, sensor, time.Millisecond)
	require.NoError(t, err) // exhausted provider ends the replay

	pubs := fp.all()
	var decisions []model.DecisionEvent
	for _, pb := range pubs {
		if pb.topic == "event/irrigationDecision/field1/s1" {
			var evt model.DecisionEvent
			require.NoError(t, json.Unmarshal(pb.payload, &evt))
			decisions = append(decisions, evt)
		}
	}
	require.Len(t, decisions, 2) // the undefined-stage reading produced none
	assert.Equal(t, "Silking", decisions[0].Stage)
	assert.Equal(t, "Silking", decisions[1].Stage)
	assert.Equal(t, 0.0, decisions[1].WaterRequiredMM) // 85% is above any reachable target for that cool reading
}

func TestLoadSensorsFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sensors-config.json"
	data := `{"field1":[{"id":"s1","latitude":26.9,"longitude":75.8,"flow_lpm":10,"area_m2":100}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	sensors, err := LoadSensors(path)
	require.NoError(t, err)
	s := sensors["field1"]["s1"]
	assert.Equal(t, "field1", s.FieldID)
	assert.Equal(t, 0.1, s.MMPerMinute())

	_, err = LoadSensors(dir + "/missing.json")
	require.Error(t, err)
}
