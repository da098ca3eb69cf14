package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/services/persistence"
	"github.com/LeonardoBeccarini/cropsim/pkg/rabbitmq"
)

func main() {
	cfg, err := config.LoadService(config.Env("CONFIG_FILE", ""))
	if err != nil {
		panic(err)
	}
	log := cfg.Logger("persistence")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === InfluxDB ===
	batch := config.EnvInt("WRITE_BATCH_SIZE", 50)
	flushMs := config.EnvInt("WRITE_FLUSH_INTERVAL_MS", 500)
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flushMs))
	influx := influxdb2.NewClientWithOptions(cfg.Influx.URL, cfg.Influx.Token, opts)
	defer influx.Close()
	writer := persistence.NewWriter(
		influx.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket),
		influx.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket),
		log,
	)
	store := persistence.NewInfluxStore(influx.QueryAPI(cfg.Influx.Org), cfg.Influx.Bucket, cfg.Influx.Measurement)
	svc := persistence.NewService(cfg.Influx.Measurement, writer, store, log)

	// === MQTT ===
	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = config.Env("HOSTNAME", "persistence-service")
	}
	client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: clientID,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("mqtt connect")
	}
	defer rabbitmq.CloseRabbitMQConn(client, log)

	// === HTTP ===
	hs := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           persistence.NewHTTPMux(svc, client),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("http listening")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	// === Consumer ===
	consumer := rabbitmq.NewConsumer(client, persistence.Topics, nil, log)
	if err := svc.Start(ctx, consumer); err != nil {
		log.WithError(err).Error("consumer stopped")
	}

	log.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shCtx)
	writer.Flush()
}
