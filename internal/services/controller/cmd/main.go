package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrosmart/cropwater/internal/config"
	"github.com/agrosmart/cropwater/internal/engine"
	"github.com/agrosmart/cropwater/internal/observability"
	"github.com/agrosmart/cropwater/internal/schedule"
	"github.com/agrosmart/cropwater/internal/services/controller"
	"github.com/agrosmart/cropwater/internal/services/forecast"
	"github.com/agrosmart/cropwater/pkg/mqttbus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	table, err := schedule.LoadFile(cfg.SchedulePath)
	if err != nil {
		log.Fatalf("schedule: %v", err)
	}
	eng, err := engine.New(table, cfg.Site)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	sensors, err := controller.LoadSensors(cfg.SensorsPath)
	if err != nil {
		log.Fatalf("sensors: %v", err)
	}

	client, err := mqttbus.Connect(ctx, cfg.Broker)
	if err != nil {
		log.Fatalf("mqtt connect: %v", err)
	}
	defer mqttbus.Close(client)

	metrics := observability.NewMetrics()

	ctrl, err := controller.New(controller.Options{
		Consumer:          mqttbus.NewConsumer(client, cfg.AggregatedTopic, nil),
		Publisher:         mqttbus.NewPublisher(client),
		Forecast:          forecast.NewOWMClient(cfg.OWMAPIKey, cfg.ForecastTimeout),
		Engine:            eng,
		Sensors:           sensors,
		Metrics:           metrics,
		SowingDate:        cfg.SowingDate,
		ForecastTimeout:   cfg.ForecastTimeout,
		DecisionTopicTmpl: cfg.DecisionTopicTmpl,
		StateTopicTmpl:    cfg.StateTopicTmpl,
	})
	if err != nil {
		log.Fatalf("controller init: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !client.IsConnectionOpen() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = w.Write([]byte("ok"))
	})
	hs := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Printf("controller: HTTP listening on %s", cfg.HTTPAddr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
		<-sigc
		log.Printf("controller: shutting down")
		shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shCancel()
		_ = hs.Shutdown(shCtx)
		cancel()
	}()

	log.Printf("controller: running, sub=%s stages=%d", cfg.AggregatedTopic, len(table.Stages()))
	if err := ctrl.Start(ctx); err != nil {
		log.Fatalf("controller: %v", err)
	}
}
