package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"moneybee/internal/models"
)

// Load builds the application configuration from environment variables,
// falling back to defaults suitable for a self-contained development run
// (sqlite store, in-memory lock and cache, no-op event publisher).
func Load() (*models.Config, error) {
	shutdownTimeout, err := getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	lockLease, err := getEnvDuration("LOCK_LEASE", 10*time.Second)
	if err != nil {
		return nil, err
	}

	concurrencyBackoff, err := getEnvDuration("CONCURRENCY_RETRY_BACKOFF", 100*time.Millisecond)
	if err != nil {
		return nil, err
	}

	collaboratorTimeout, err := getEnvDuration("COLLABORATOR_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	breakerCooldown, err := getEnvDuration("BREAKER_COOLDOWN", 30*time.Second)
	if err != nil {
		return nil, err
	}

	validTTL, err := getEnvDuration("API_KEY_CACHE_VALID_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	invalidTTL, err := getEnvDuration("API_KEY_CACHE_INVALID_TTL", time.Minute)
	if err != nil {
		return nil, err
	}

	reconcileInterval, err := getEnvDuration("REACTOR_RECONCILE_INTERVAL", 0)
	if err != nil {
		return nil, err
	}

	dailyLimit, err := getEnvDecimal("DAILY_LIMIT_TRY", "10000")
	if err != nil {
		return nil, err
	}

	highAmountThreshold, err := getEnvDecimal("HIGH_AMOUNT_THRESHOLD_TRY", "1000")
	if err != nil {
		return nil, err
	}

	feeBase, err := getEnvDecimal("FEE_BASE_TRY", "5")
	if err != nil {
		return nil, err
	}

	feePercent, err := getEnvDecimal("FEE_PERCENT", "0.01")
	if err != nil {
		return nil, err
	}

	cfg := &models.Config{
		HTTP: models.HTTPConfig{
			Addr:              getEnvString("HTTP_ADDR", ":8080"),
			ShutdownTimeout:   shutdownTimeout,
			IdempotencyHeader: getEnvString("IDEMPOTENCY_HEADER", "X-Idempotency-Key"),
		},
		Database: models.DatabaseConfig{
			Backend:         getEnvString("STORE_BACKEND", "sqlite"),
			Path:            getEnvString("DATABASE_PATH", "moneybee.db"),
			PostgresDSN:     getEnvString("POSTGRES_DSN", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Redis: models.RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", ""),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Bus: models.BusConfig{
			URL:          getEnvString("AMQP_URL", ""),
			Exchange:     getEnvString("EVENT_EXCHANGE", "moneybee.events"),
			ReactorQueue: getEnvString("REACTOR_QUEUE", "moneybee.transfer-service.customer-events"),
		},
		Engine: models.EngineConfig{
			DailyLimitTRY:       dailyLimit,
			HighAmountThreshold: highAmountThreshold,
			ApprovalWait:        time.Duration(getEnvInt("APPROVAL_WAIT_MINUTES", 5)) * time.Minute,
			FeeBase:             feeBase,
			FeePercent:          feePercent,
			ConcurrencyAttempts: getEnvInt("CONCURRENCY_RETRY_ATTEMPTS", 3),
			ConcurrencyBackoff:  concurrencyBackoff,
			RequireKYCVerified:  getEnvBool("REQUIRE_KYC_VERIFIED", true),
			ValidateNationalIDs: getEnvBool("NATIONAL_ID_VALIDATION", false),
			CustomerListCap:     getEnvInt("CUSTOMER_LIST_CAP", 50),
		},
		Lock: models.LockConfig{
			Lease:           lockLease,
			AcquireAttempts: getEnvInt("LOCK_ACQUIRE_ATTEMPTS", 3),
		},
		Auth: models.AuthConfig{
			Header:      getEnvString("API_KEY_HEADER", "X-API-Key"),
			KeyPrefix:   "mb_",
			MinKeyLen:   20,
			ValidTTL:    validTTL,
			InvalidTTL:  invalidTTL,
			BypassPaths: getEnvStringSlice("AUTH_BYPASS_PATHS", "/health,/metrics,/docs"),
		},
		Collaborators: models.CollaboratorsConfig{
			Customer: models.CollaboratorConfig{
				BaseURL: getEnvString("CUSTOMER_SERVICE_URL", "http://localhost:8081"),
				Timeout: collaboratorTimeout,
			},
			Fraud: models.CollaboratorConfig{
				BaseURL: getEnvString("FRAUD_SERVICE_URL", "http://localhost:8082"),
				Timeout: collaboratorTimeout,
			},
			ExchangeRate: models.CollaboratorConfig{
				BaseURL: getEnvString("EXCHANGE_RATE_SERVICE_URL", "http://localhost:8083"),
				Timeout: collaboratorTimeout,
			},
			Auth: models.CollaboratorConfig{
				BaseURL: getEnvString("AUTH_SERVICE_URL", "http://localhost:8084"),
				Timeout: collaboratorTimeout,
			},
			RetryAttempts:    getEnvInt("COLLABORATOR_RETRY_ATTEMPTS", 3),
			BreakerThreshold: uint32(getEnvInt("BREAKER_FAILURE_THRESHOLD", 5)),
			BreakerCooldown:  breakerCooldown,
		},
		Reactor: models.ReactorConfig{
			ReconcileInterval: reconcileInterval,
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}

	if err := loadCollaboratorOverrides(&cfg.Collaborators); err != nil {
		return nil, err
	}

	return cfg, nil
}

// collaboratorOverride is one entry of the optional collaborators YAML file.
// Timeouts are duration strings ("10s", "1m30s").
type collaboratorOverride struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

type collaboratorsFile struct {
	Customer     *collaboratorOverride `yaml:"customer"`
	Fraud        *collaboratorOverride `yaml:"fraud"`
	ExchangeRate *collaboratorOverride `yaml:"exchange_rate"`
	Auth         *collaboratorOverride `yaml:"auth"`
}

// loadCollaboratorOverrides applies the optional per-collaborator YAML file on
// top of the env-derived settings. A missing file at the default path is not
// an error; a missing file named explicitly via COLLABORATORS_FILE is.
func loadCollaboratorOverrides(collaborators *models.CollaboratorsConfig) error {
	file := getEnvString("COLLABORATORS_FILE", "collaborators.yaml")
	explicit := os.Getenv("COLLABORATORS_FILE") != ""

	var path string
	if filepath.IsAbs(file) {
		path = file
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(wd, file)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("unable to read %s: %w", file, err)
	}

	var overrides collaboratorsFile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("unable to parse %s: %w", file, err)
	}

	apply := func(name string, dst *models.CollaboratorConfig, src *collaboratorOverride) error {
		if src == nil {
			return nil
		}
		if src.BaseURL != "" {
			dst.BaseURL = src.BaseURL
		}
		if src.Timeout != "" {
			timeout, err := time.ParseDuration(src.Timeout)
			if err != nil {
				return fmt.Errorf("invalid timeout for collaborator %s: %q (%w)", name, src.Timeout, err)
			}
			dst.Timeout = timeout
		}
		return nil
	}

	if err := apply("customer", &collaborators.Customer, overrides.Customer); err != nil {
		return err
	}
	if err := apply("fraud", &collaborators.Fraud, overrides.Fraud); err != nil {
		return err
	}
	if err := apply("exchange_rate", &collaborators.ExchangeRate, overrides.ExchangeRate); err != nil {
		return err
	}
	if err := apply("auth", &collaborators.Auth, overrides.Auth); err != nil {
		return err
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
	}
	return d, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvStringSlice(key, defaultValue string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
