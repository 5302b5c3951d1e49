package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrosmart/cropwater/internal/model/messages"
	"github.com/agrosmart/cropwater/pkg/mqttbus"
)

type fakeConsumer struct {
	handler mqttbus.Handler
	err     error
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
	msgs []published
}

func (f *fakePublisher) Publish(topic string, qos byte, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic: topic, qos: qos, payload: payload})
	return nil
}

func (f *fakePublisher) Close() {}

func (f *fakePublisher) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]published, len(f.msgs))
	copy(out, f.msgs)
	return out
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

var _ mqtt.Message = (*fakeMessage)(nil)

func sample(t *testing.T, field, sensor string, moisture, temp float64) mqtt.Message {
	t.Helper()
	b, err := json.Marshal(messages.SensorData{
		FieldID: field, SensorID: sensor,
		MoisturePct: moisture, TemperatureC: temp,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	return &fakeMessage{topic: "sensor/data/" + field + "/" + sensor, payload: b}
}

func TestFlushAveragesPerSensor(t *testing.T) {
	fc := &fakeConsumer{}
	fp := &fakePublisher{}
	svc := New(fc, fp, time.Minute, WithClock(clockwork.NewFakeClockAt(
		time.Date(2026, 7, 15, 14, 0, 0, 0, time.UTC))))
	require.NotNil(t, fc.handler)

	require.NoError(t, fc.handler("", sample(t, "field1", "s1", 60, 28)))
	require.NoError(t, fc.handler("", sample(t, "field1", "s1", 70, 30)))
	require.NoError(t, fc.handler("", sample(t, "field1", "s2", 40, 29)))

	svc.Flush()

	msgs := fp.all()
	require.Len(t, msgs, 2)

	byTopic := map[string]messages.SensorData{}
	for _, m := range msgs {
		assert.Equal(t, byte(1), m.qos)
		var out messages.SensorData
		require.NoError(t, json.Unmarshal(m.payload, &out))
		byTopic[m.topic] = out
	}

	s1 := byTopic["sensor/aggregated/field1/s1"]
	assert.True(t, s1.Aggregated)
	assert.InDelta(t, 65.0, s1.MoisturePct, 1e-9)
	assert.InDelta(t, 29.0, s1.TemperatureC, 1e-9)

	s2 := byTopic["sensor/aggregated/field1/s2"]
	assert.InDelta(t, 40.0, s2.MoisturePct, 1e-9)
	assert.InDelta(t, 29.0, s2.TemperatureC, 1e-9)
}

func TestFlushResetsBuffer(t *testing.T) {
	fc := &fakeConsumer{}
	fp := &fakePublisher{}
	svc := New(fc, fp, time.Minute)

	require.NoError(t, fc.handler("", sample(t, "field1", "s1", 60, 28)))
	svc.Flush()
	require.Len(t, fp.all(), 1)

	// nothing buffered, nothing published
	svc.Flush()
	assert.Len(t, fp.all(), 1)
}

func TestAggregatedSamplesIgnored(t *testing.T) {
	fc := &fakeConsumer{}
	fp := &fakePublisher{}
	svc := New(fc, fp, time.Minute)

	b, err := json.Marshal(messages.SensorData{
		FieldID: "field1", SensorID: "s1", MoisturePct: 65, Aggregated: true,
	})
	require.NoError(t, err)
	require.NoError(t, fc.handler("", &fakeMessage{topic: "sensor/aggregated/field1/s1", payload: b}))

	svc.Flush()
	assert.Empty(t, fp.all())
}

func TestMalformedSampleRejected(t *testing.T) {
	fc := &fakeConsumer{}
	fp := &fakePublisher{}
	New(fc, fp, time.Minute)

	err := fc.handler("", &fakeMessage{topic: "sensor/data/field1/s1", payload: []byte(`{`)})
	assert.Error(t, err)

	err = fc.handler("", &fakeMessage{topic: "sensor/data/field1/s1", payload: []byte(`{"moisture_pct":50}`)})
	assert.Error(t, err)
}

func TestStartFlushesOnTick(t *testing.T) {
	fc := &fakeConsumer{}
	fp := &fakePublisher{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 7, 15, 14, 0, 0, 0, time.UTC))
	svc := New(fc, fp, time.Minute, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	require.NoError(t, fc.handler("", sample(t, "field1", "s1", 60, 28)))

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return len(fp.all()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestStartSurfacesSubscribeFailure(t *testing.T) {
	fc := &fakeConsumer{err: errors.New("subscribe refused")}
	fp := &fakePublisher{}
	svc := New(fc, fp, time.Minute)

	err := svc.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribe refused")
}
