package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	simpb "github.com/LeonardoBeccarini/cropsim/grpc/simulation"
	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/services/gateway/app"
)

func main() {
	cfg, err := config.LoadService(config.Env("CONFIG_FILE", ""))
	if err != nil {
		panic(err)
	}
	log := cfg.Logger("gateway")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := grpc.NewClient(cfg.SimulationAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.WithError(err).Fatal("grpc client")
	}
	defer conn.Close()

	gw := app.NewGateway(app.Config{
		PersistenceURL: cfg.PersistenceURL,
		Timeout:        time.Duration(cfg.TimeoutMs) * time.Millisecond,
		Breaker: app.BreakerSettings{
			Failures: cfg.Breaker.Fails,
			OpenFor:  time.Duration(cfg.Breaker.OpenMs) * time.Millisecond,
			Interval: time.Duration(cfg.Breaker.IntervalMs) * time.Millisecond,
		},
		Logger: log,
	}, simpb.NewSimulationServiceClient(conn))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           gw.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
}
