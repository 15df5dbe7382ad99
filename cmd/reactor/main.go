package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"moneybee/internal/bus"
	"moneybee/internal/common"
	"moneybee/internal/config"
	"moneybee/internal/models"
	"moneybee/internal/reactor"
	"moneybee/internal/transfer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	if cfg.Bus.URL == "" {
		zap.L().Fatal("Reactor requires AMQP_URL; there is nothing to consume without a broker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting MoneyBee customer-event reactor",
		zap.String("queue", cfg.Bus.ReactorQueue),
		zap.String("exchange", cfg.Bus.Exchange))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	customers, fraud, rates, _, err := common.InitializeClients(cfg.Collaborators)
	if err != nil {
		zap.L().Fatal("Failed to initialize collaborator clients", zap.Error(err))
	}

	engine, err := transfer.NewService(transfer.Config{
		Store:     services.Store,
		Locks:     services.Locks,
		Publisher: services.Publisher,
		Customers: customers,
		Fraud:     fraud,
		Rates:     rates,
		Engine:    cfg.Engine,
	})
	if err != nil {
		zap.L().Fatal("Failed to build transfer engine", zap.Error(err))
	}

	consumer, err := bus.NewAMQPConsumer(cfg.Bus.URL, cfg.Bus.Exchange, cfg.Bus.ReactorQueue, []string{
		models.RoutingKeyCustomerStatusChanged,
		models.RoutingKeyCustomerCreated,
		models.RoutingKeyCustomerDeleted,
	})
	if err != nil {
		zap.L().Fatal("Failed to connect bus consumer", zap.Error(err))
	}
	defer consumer.Close()

	r, err := reactor.New(reactor.Config{
		Engine:            engine,
		Consumer:          consumer,
		ReconcileInterval: cfg.Reactor.ReconcileInterval,
	})
	if err != nil {
		zap.L().Fatal("Failed to build reactor", zap.Error(err))
	}

	r.Start(ctx)
	zap.L().Info("Reactor running; press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping reactor...")

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Reactor stopped gracefully")
	case <-time.After(cfg.HTTP.ShutdownTimeout):
		zap.L().Warn("Forced shutdown after timeout")
	}
}
