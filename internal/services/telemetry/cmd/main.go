package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/agrosmart/cropwater/internal/services/telemetry"
	"github.com/agrosmart/cropwater/pkg/dedup"
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
	cfg := struct {
		Broker mqttbus.Config

		InfluxURL    string
		InfluxToken  string
		InfluxOrg    string
		InfluxBucket string

		Topics        []string
		BatchSize     int
		FlushInterval time.Duration

		HTTPPort      int
		ShutdownGrace time.Duration
	}{
		Broker: mqttbus.Config{
			Host:     envStr("MQTT_HOST", "localhost"),
			Port:     envInt("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", "guest"),
			Password: envStr("MQTT_PASSWORD", "guest"),
			ClientID: envStr("HOSTNAME", "telemetry-service"),
		},

		InfluxURL:    envStr("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    envStr("INFLUX_ORG", "agrosmart"),
		InfluxBucket: envStr("INFLUX_BUCKET", "irrigation"),

		Topics: func() []string {
			raw := envStr("EVENT_SUB_TOPICS",
				"event/irrigationDecision/#,event/stateChange/#,event/irrigationResult/#")
			parts := strings.Split(raw, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if s := strings.TrimSpace(p); s != "" {
					out = append(out, s)
				}
			}
			return out
		}(),
		BatchSize:     envInt("WRITE_BATCH_SIZE", 10),
		FlushInterval: time.Duration(envInt("WRITE_FLUSH_INTERVAL_MS", 200)) * time.Millisecond,

		HTTPPort:      envInt("HTTP_PORT", 8080),
		ShutdownGrace: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	influx := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken, opts)
	defer influx.Close()
	writer := telemetry.NewWriter(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket))

	mqttClient, err := mqttbus.Connect(ctx, cfg.Broker)
	if err != nil {
		log.Fatalf("mqtt connect: %v", err)
	}
	defer mqttbus.Close(mqttClient)

	mux := http.NewServeMux()
	mux.Handle("/healthz", telemetry.NewHealthHandler(mqttClient, influx, writer))
	mux.Handle("/readyz", telemetry.NewReadyHandler(mqttClient, influx, writer, 2*time.Second))
	mux.Handle("/decisions/latest",
		telemetry.NewLatestDecisionsHandler(influx, cfg.InfluxOrg, cfg.InfluxBucket))

	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("telemetry: HTTP listening on :%d", cfg.HTTPPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	handler := telemetry.NewMQTTHandler(writer.Write)

	// QoS1 topics may redeliver; drop duplicates before decoding
	d := dedup.New(10*time.Minute, 20000)

	for _, topic := range cfg.Topics {
		log.Printf("telemetry: subscribing to %s", topic)
		qos := mqttbus.QoSFor(topic)
		if token := mqttClient.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
			if mqttbus.QoSFor(m.Topic()) == 1 && d.Seen(m.Payload()) {
				return
			}
			if err := handler.Handle("", m); err != nil {
				log.Printf("telemetry: decode error on %s: %v", m.Topic(), err)
			}
		}); token.Wait() && token.Error() != nil {
			log.Fatalf("subscribe %s: %v", topic, token.Error())
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("telemetry: shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shCancel()
	_ = hs.Shutdown(shCtx)

	// allow the async writer to flush
	time.Sleep(cfg.FlushInterval + 100*time.Millisecond)
}
