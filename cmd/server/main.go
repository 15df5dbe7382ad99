package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"moneybee/internal/auth"
	"moneybee/internal/common"
	"moneybee/internal/config"
	"moneybee/internal/server"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting MoneyBee API server", zap.String("addr", cfg.HTTP.Addr))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	customers, fraud, rates, authClient, err := common.InitializeClients(cfg.Collaborators)
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

	filter, err := auth.NewFilter(services.Cache, authClient, cfg.Auth)
	if err != nil {
		zap.L().Fatal("Failed to build admission filter", zap.Error(err))
	}

	healthChecks := map[string]func(ctx context.Context) error{
		"store": services.Store.Ping,
	}
	if services.Redis != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return services.Redis.Ping(ctx).Err()
		}
	}

	srv, err := server.New(server.Config{
		HTTP:         cfg.HTTP,
		Auth:         cfg.Auth,
		Engine:       engine,
		Filter:       filter,
		HealthChecks: healthChecks,
	})
	if err != nil {
		zap.L().Fatal("Failed to build HTTP server", zap.Error(err))
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return srv.Listen()
	})

	group.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			zap.L().Info("Shutdown signal received", zap.String("signal", sig.String()))
		case <-groupCtx.Done():
		}
		return srv.Shutdown()
	})

	if err := group.Wait(); err != nil {
		zap.L().Fatal("Server exited with error", zap.Error(err))
	}
	zap.L().Info("Server stopped gracefully")
}
