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

	"github.com/agrosmart/cropwater/internal/services/aggregator"
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

func main() {
	broker := mqttbus.Config{
		Host:     envStr("MQTT_HOST", "localhost"),
		Port:     envInt("MQTT_PORT", 1883),
		User:     envStr("MQTT_USER", "guest"),
		Password: envStr("MQTT_PASSWORD", "guest"),
		ClientID: envStr("HOSTNAME", "aggregator-service"),
	}
	rawTopic := envStr("SENSOR_DATA_TOPIC", "sensor/data/#")
	interval := time.Duration(envInt("AGGREGATION_INTERVAL_SEC", 300)) * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := mqttbus.Connect(ctx, broker)
	if err != nil {
		log.Fatalf("mqtt connect: %v", err)
	}
	defer mqttbus.Close(client)

	consumer := mqttbus.NewConsumer(client, rawTopic, nil)
	publisher := mqttbus.NewPublisher(client)
	svc := aggregator.New(consumer, publisher, interval)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Printf("aggregator: shutting down")
		cancel()
	}()

	log.Printf("aggregator: consuming %s, flushing every %s", rawTopic, interval)
	if err := svc.Start(ctx); err != nil {
		log.Fatalf("aggregator: %v", err)
	}
}
