package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"moneybee/internal/bus"
	"moneybee/internal/cache"
	"moneybee/internal/clients"
	"moneybee/internal/database"
	"moneybee/internal/lock"
	"moneybee/internal/models"
	"moneybee/internal/postgres"
	"moneybee/internal/store"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

// Services bundles the shared infrastructure both daemons wire up: the
// transfer store, the distributed lock, the api-key cache, and the event
// publisher.
type Services struct {
	Store     store.TransferStore
	Locks     lock.Manager
	Cache     cache.ValidationCache
	Publisher bus.Publisher
	Redis     *redis.Client
}

// InitializeLogger installs the global zap logger. LOG_LEVEL=debug selects
// the development config.
func InitializeLogger(level string) (*zap.Logger, func()) {
	var (
		logger *zap.Logger
		err    error
	)
	if strings.EqualFold(level, "debug") {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the configured store backend, the Redis-backed
// lock and cache (or their in-memory fallbacks when no address is set), and
// the event publisher (or the logging no-op without a broker).
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	transferStore, err := newTransferStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services := &Services{Store: transferStore}

	if cfg.Redis.Addr != "" {
		zap.L().Info("Connecting to Redis", zap.String("addr", cfg.Redis.Addr))
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			transferStore.Close()
			return nil, fmt.Errorf("unable to ping redis: %w", err)
		}
		services.Redis = client
		services.Locks = lock.NewRedisManager(client, cfg.Lock)
		services.Cache = cache.NewRedisCache(client)
	} else {
		zap.L().Info("No Redis address configured; using in-memory lock and cache")
		services.Locks = lock.NewMemoryManager(cfg.Lock)
		services.Cache = cache.NewMemoryCache()
	}

	if cfg.Bus.URL != "" {
		publisher, err := bus.NewAMQPPublisher(cfg.Bus.URL, cfg.Bus.Exchange)
		if err != nil {
			services.Close()
			return nil, fmt.Errorf("unable to connect event publisher: %w", err)
		}
		services.Publisher = publisher
	} else {
		zap.L().Warn("No AMQP URL configured; events will be logged and dropped")
		services.Publisher = bus.NewNoopPublisher()
	}

	return services, nil
}

// InitializeClients builds the four collaborator clients under the shared
// resilience policy.
func InitializeClients(cfg models.CollaboratorsConfig) (clients.CustomerClient, clients.FraudClient, clients.ExchangeRateClient, clients.AuthClient, error) {
	policy := clients.PolicyFromConfig(cfg)

	customers, err := clients.NewCustomerClient(cfg.Customer, policy)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	fraud, err := clients.NewFraudClient(cfg.Fraud, policy)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	rates, err := clients.NewExchangeRateClient(cfg.ExchangeRate, policy)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	authClient, err := clients.NewAuthClient(cfg.Auth, policy)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return customers, fraud, rates, authClient, nil
}

func newTransferStore(ctx context.Context, cfg models.DatabaseConfig) (store.TransferStore, error) {
	switch cfg.Backend {
	case "sqlite", "":
		return database.NewService(ctx, cfg)
	case "postgres":
		return postgres.NewService(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want sqlite or postgres)", cfg.Backend)
	}
}

func (cs *Services) Close() {
	if cs.Publisher != nil {
		cs.Publisher.Close()
	}
	if cs.Redis != nil {
		if err := cs.Redis.Close(); err != nil {
			zap.L().Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if cs.Store != nil {
		cs.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
