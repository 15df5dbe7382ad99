package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration.
type Config struct {
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Bus           BusConfig
	Engine        EngineConfig
	Lock          LockConfig
	Auth          AuthConfig
	Collaborators CollaboratorsConfig
	Reactor       ReactorConfig
	LogLevel      string
}

// HTTPConfig holds the inbound API server settings.
type HTTPConfig struct {
	Addr              string
	ShutdownTimeout   time.Duration
	IdempotencyHeader string
}

// DatabaseConfig holds transfer-store connection settings for either backend.
type DatabaseConfig struct {
	// Backend selects the store implementation: "sqlite" or "postgres".
	Backend         string
	Path            string // sqlite file path
	PostgresDSN     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// RedisConfig holds the shared Redis connection used by the distributed lock
// and the api-key validation cache. An empty Addr selects the in-memory
// implementations (single-node development and tests).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BusConfig holds the RabbitMQ connection and topology settings. An empty URL
// selects the logging no-op publisher (development without a broker).
type BusConfig struct {
	URL          string
	Exchange     string
	ReactorQueue string
}

// EngineConfig holds the business constants of the transfer engine.
type EngineConfig struct {
	DailyLimitTRY       decimal.Decimal
	HighAmountThreshold decimal.Decimal
	ApprovalWait        time.Duration
	FeeBase             decimal.Decimal
	FeePercent          decimal.Decimal
	ConcurrencyAttempts int
	ConcurrencyBackoff  time.Duration
	RequireKYCVerified  bool
	ValidateNationalIDs bool
	CustomerListCap     int
}

// LockConfig holds the distributed-lock lease and acquisition policy.
type LockConfig struct {
	Lease           time.Duration
	AcquireAttempts int
}

// AuthConfig holds the admission-filter settings.
type AuthConfig struct {
	Header      string
	KeyPrefix   string
	MinKeyLen   int
	ValidTTL    time.Duration
	InvalidTTL  time.Duration
	BypassPaths []string
}

// CollaboratorConfig is one outbound dependency's endpoint and deadline.
type CollaboratorConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CollaboratorsConfig holds every outbound collaborator plus the shared
// resilience policy.
type CollaboratorsConfig struct {
	Customer     CollaboratorConfig
	Fraud        CollaboratorConfig
	ExchangeRate CollaboratorConfig
	Auth         CollaboratorConfig

	RetryAttempts    int
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// ReactorConfig holds the customer-event reactor settings.
type ReactorConfig struct {
	// ReconcileInterval > 0 enables the periodic reconciliation sweep in the
	// reactor daemon; zero disables it (the manual tool stays available).
	ReconcileInterval time.Duration
}
