package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ordertrack/internal/auth"
	"ordertrack/internal/broker"
	"ordertrack/internal/commons"
	"ordertrack/internal/gateway"
	"ordertrack/internal/infrastructure/kafka"
	"ordertrack/internal/infrastructure/logger"
	"ordertrack/internal/infrastructure/metrics"
	"ordertrack/internal/order"
	"ordertrack/internal/order/registry"
	"ordertrack/internal/server"
)

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := commons.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	roomBroker := broker.New(broker.Config{
		Shards:                cfg.Broker.Shards,
		MaxRooms:              cfg.Broker.MaxRooms,
		MaxRoomsPerSubscriber: cfg.Broker.MaxRoomsPerConnection,
	}, zapLogger, metrics.NewBrokerMetrics(reg))

	publishers := []registry.Publisher{roomBroker}
	relay := kafka.NewRelay(kafka.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.Topic, zapLogger,
		kafka.WithQueueSize(cfg.Kafka.QueueSize),
		kafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if relay.Enabled() {
		publishers = append(publishers, relay)
		zapLogger.Info("kafka relay enabled", zap.String("topic", cfg.Kafka.Topic))
	}

	orderModule := order.NewModule(cfg, publishers, reg, zapLogger)
	if err := orderModule.Driver.Start(); err != nil {
		zapLogger.Fatal("starting lifecycle driver", zap.Error(err))
	}

	gw := gateway.New(roomBroker, gateway.Config{
		MaxConnections: cfg.Gateway.MaxConnections,
		SendBuffer:     cfg.Gateway.SendBuffer,
		PingInterval:   cfg.Gateway.PingInterval,
		PongWait:       cfg.Gateway.PongWait,
		WriteWait:      cfg.Gateway.WriteWait,
		MaxMessageSize: cfg.Gateway.MaxMessageSize,
	}, zapLogger, metrics.NewGatewayMetrics(reg))

	router := server.NewRouter(server.Routes{
		Orders:  orderModule.Controller,
		Gateway: gw,
		Rooms:   roomBroker,
		Metrics: metrics.Handler(reg),
		Auth:    auth.NewAuthenticator(cfg.Auth.Secret, zapLogger),
	}, zapLogger)

	srv := server.New(cfg.Server, router, zapLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	zapLogger.Info("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server shutdown failed", zap.Error(err))
	}
	gw.Close()
	orderModule.Driver.Stop()
	if err := relay.Close(); err != nil {
		zapLogger.Error("closing kafka relay", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}
