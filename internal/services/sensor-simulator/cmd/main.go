package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/agrosmart/cropwater/internal/model"
	simulator "github.com/agrosmart/cropwater/internal/services/sensor-simulator"
	"github.com/agrosmart/cropwater/pkg/mqttbus"
)

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func main() {
	sensor := &model.Sensor{
		FieldID:   envStr("FIELD_ID", "field1"),
		ID:        envStr("SENSOR_ID", "s1"),
		Latitude:  envFloat("SENSOR_LAT", 26.9),
		Longitude: envFloat("SENSOR_LON", 75.8),
		State:     model.StateOff,
		FlowLpm:   envFloat("VALVE_FLOW_LPM", 10),
		AreaM2:    envFloat("VALVE_AREA_M2", 100),
	}

	broker := mqttbus.Config{
		Host:     envStr("MQTT_HOST", "localhost"),
		Port:     envInt("MQTT_PORT", 1883),
		User:     envStr("MQTT_USER", "guest"),
		Password: envStr("MQTT_PASSWORD", "guest"),
		ClientID: envStr("HOSTNAME", "sensor-"+sensor.FieldID+"-"+sensor.ID),
	}
	interval := time.Duration(envInt("SAMPLE_INTERVAL_SEC", 60)) * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := mqttbus.Connect(ctx, broker)
	if err != nil {
		log.Fatalf("mqtt connect: %v", err)
	}
	defer mqttbus.Close(client)

	gen := simulator.NewGenerator(simulator.GeneratorConfig{
		SeedMoisturePct: envFloat("SEED_MOISTURE_PCT", 30),
		DecayPctPerMin:  envFloat("MOISTURE_DECAY_PCT_PER_MIN", 0.05),
		GainPctPerMin:   envFloat("MOISTURE_GAIN_PCT_PER_MIN", 0.6),
		BaseTempC:       envFloat("BASE_TEMP_C", 27),
		TempSwingC:      envFloat("TEMP_SWING_C", 7),
	})

	stateTopic := "event/stateChange/" + sensor.FieldID + "/" + sensor.ID
	consumer := mqttbus.NewConsumer(client, stateTopic, nil)
	publisher := mqttbus.NewPublisher(client)
	sim := simulator.New(consumer, publisher, gen, sensor)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Printf("simulator: shutting down")
		cancel()
	}()

	log.Printf("simulator: %s/%s sampling every %s", sensor.FieldID, sensor.ID, interval)
	if err := sim.Start(ctx, interval); err != nil {
		log.Fatalf("simulator: %v", err)
	}
}
