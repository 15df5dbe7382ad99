package postgres

import (
	"context"
	"fmt"

	"moneybee/internal/models"
	"moneybee/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.TransferStore.
var _ store.TransferStore = (*Service)(nil)

// Service is the Postgres-backed transfer store, for deployments where the
// single-file SQLite backend is not enough.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres DSN cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	zap.L().Info("Connecting to Postgres", zap.String("database", poolCfg.ConnConfig.Database))
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping postgres: %w", err)
	}

	service := &Service{pool: pool}
	if err := service.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Postgres store initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	s.pool.Close()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Service) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfers (
		id UUID PRIMARY KEY,
		sender_id UUID NOT NULL,
		receiver_id UUID NOT NULL,
		sender_national_id TEXT NOT NULL,
		receiver_national_id TEXT NOT NULL,
		amount NUMERIC(20, 4) NOT NULL,
		currency TEXT NOT NULL,
		amount_in_try NUMERIC(20, 4) NOT NULL,
		exchange_rate NUMERIC(20, 8),
		transaction_fee NUMERIC(20, 4) NOT NULL,
		transaction_code TEXT NOT NULL,
		status TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		idempotency_key TEXT,
		description TEXT NOT NULL DEFAULT '',
		approval_required_until TIMESTAMPTZ,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,
		cancellation_reason TEXT NOT NULL DEFAULT ''
	);

	CREATE UNIQUE INDEX IF NOT EXISTS transfers_transaction_code_key
		ON transfers (transaction_code);
	CREATE UNIQUE INDEX IF NOT EXISTS transfers_idempotency_key_key
		ON transfers (idempotency_key) WHERE idempotency_key IS NOT NULL;
	CREATE INDEX IF NOT EXISTS transfers_sender_created_at_idx
		ON transfers (sender_id, created_at);
	CREATE INDEX IF NOT EXISTS transfers_receiver_id_idx
		ON transfers (receiver_id);
	CREATE INDEX IF NOT EXISTS transfers_status_idx
		ON transfers (status);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}
