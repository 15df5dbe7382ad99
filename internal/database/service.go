package database

import (
	"context"
	"database/sql"
	"fmt"

	"moneybee/internal/models"
	"moneybee/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.TransferStore.
var _ store.TransferStore = (*Service)(nil)

// Service is the SQLite-backed transfer store.
type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		sender_national_id TEXT NOT NULL,
		receiver_national_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		amount_in_try TEXT NOT NULL,
		exchange_rate TEXT,
		transaction_fee TEXT NOT NULL,
		transaction_code TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		idempotency_key TEXT,
		description TEXT NOT NULL DEFAULT '',
		approval_required_until TIMESTAMP,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		cancelled_at TIMESTAMP,
		cancellation_reason TEXT NOT NULL DEFAULT ''
	);

	-- Partial unique index: keys are globally unique across all rows that
	-- carry one; rows without a key do not collide.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transfers_idempotency_key
		ON transfers(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- Daily-limit window scans
	CREATE INDEX IF NOT EXISTS idx_transfers_sender_created_at ON transfers(sender_id, created_at);
	-- Cascade cancellation and customer history
	CREATE INDEX IF NOT EXISTS idx_transfers_receiver_id ON transfers(receiver_id);
	CREATE INDEX IF NOT EXISTS idx_transfers_status ON transfers(status);
	`

	_, err := s.db.Exec(schema)
	return err
}
