package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	simpb "github.com/LeonardoBeccarini/cropsim/grpc/simulation"
	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/forcing"
	"github.com/LeonardoBeccarini/cropsim/internal/services/simulation"
	"github.com/LeonardoBeccarini/cropsim/pkg/rabbitmq"
)

func main() {
	cfg, err := config.LoadService(config.Env("CONFIG_FILE", ""))
	if err != nil {
		panic(err)
	}
	log := cfg.Logger("simulation")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "simulation-service"
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

	opts := simulation.Options{
		ScenarioDir: cfg.ScenarioDir,
		MaxParallel: cfg.MaxParallel,
		Logger:      log,
	}
	if cfg.Weather.APIKey != "" {
		opts.Forecast = forcing.NewOpenWeather(cfg.Weather.APIKey)
		log.Info("openweather forecast enabled")
	}
	svc := simulation.NewService(rabbitmq.NewPublisher(client, 5*time.Second), opts)

	// MQTT requests
	topics := strings.Split(cfg.RequestTopic, ",")
	consumer := rabbitmq.NewConsumer(client, topics, svc.HandleRequest, log)
	consumeErr := make(chan error, 1)
	go func() { consumeErr <- consumer.ConsumeMessage(ctx) }()

	// gRPC
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.WithError(err).Fatal("grpc listen")
	}
	grpcServer := grpc.NewServer()
	simpb.RegisterSimulationServiceServer(grpcServer, simulation.NewGrpcHandler(svc))
	go func() {
		log.WithField("port", cfg.GRPCPort).Info("grpc listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).Error("grpc serve")
		}
	}()

	// HTTP
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           simulation.NewHTTPMux(svc, client),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http serve")
		}
	}()

	svc.SetReady(true)
	log.Info("simulation service started")

	select {
	case <-ctx.Done():
	case err := <-consumeErr:
		if err != nil {
			log.WithError(err).Error("consumer stopped")
		}
		stop()
	}

	log.Info("shutting down")
	svc.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	svc.Close()
}
