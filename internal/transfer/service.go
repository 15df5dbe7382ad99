package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"moneybee/internal/apperr"
	"moneybee/internal/bus"
	"moneybee/internal/clients"
	"moneybee/internal/lock"
	"moneybee/internal/models"
	"moneybee/internal/store"
)

// Config wires the engine's capability dependencies. Every field except Now
// is required.
type Config struct {
	Store     store.TransferStore
	Locks     lock.Manager
	Publisher bus.Publisher
	Customers clients.CustomerClient
	Fraud     clients.FraudClient
	Rates     clients.ExchangeRateClient
	Engine    models.EngineConfig
	// Now overrides the clock in tests; defaults to time.Now.
	Now func() time.Time
}

// Service is the transfer lifecycle engine: idempotent creation behind the
// daily-limit lock, pickup with receiver verification and the approval
// clock, cancellation with fee refund semantics, and the read surface.
type Service struct {
	store     store.TransferStore
	locks     lock.Manager
	publisher bus.Publisher
	customers clients.CustomerClient
	fraud     clients.FraudClient
	rates     clients.ExchangeRateClient
	cfg       models.EngineConfig
	now       func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("transfer store cannot be nil")
	}
	if cfg.Locks == nil {
		return nil, fmt.Errorf("lock manager cannot be nil")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("event publisher cannot be nil")
	}
	if cfg.Customers == nil || cfg.Fraud == nil || cfg.Rates == nil {
		return nil, fmt.Errorf("collaborator clients cannot be nil")
	}
	if cfg.Engine.ConcurrencyAttempts <= 0 {
		return nil, fmt.Errorf("concurrency attempts must be positive, got %d", cfg.Engine.ConcurrencyAttempts)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:     cfg.Store,
		locks:     cfg.Locks,
		publisher: cfg.Publisher,
		customers: cfg.Customers,
		fraud:     cfg.Fraud,
		rates:     cfg.Rates,
		cfg:       cfg.Engine,
		now:       now,
	}, nil
}

// GetByCode loads a transfer by its transaction code.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Transfer, error) {
	transfer, err := s.store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrTransferNotFound) {
			return nil, apperr.New(apperr.NotFound, "transfer not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "unable to load transfer", err)
	}
	return transfer, nil
}

// ListCustomerTransfers returns the customer's transfers as sender or
// receiver, newest first, capped at the configured listing limit.
func (s *Service) ListCustomerTransfers(ctx context.Context, customerID uuid.UUID) ([]models.Transfer, error) {
	transfers, err := s.store.ListByCustomer(ctx, customerID, s.cfg.CustomerListCap)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "unable to list transfers", err)
	}
	return transfers, nil
}

// DailyLimit reports today's consumed and remaining sending capacity.
func (s *Service) DailyLimit(ctx context.Context, customerID uuid.UUID) (*models.DailyLimitStatus, error) {
	from := startOfDayUTC(s.now())
	total, err := s.store.SumDailyAmountTRY(ctx, customerID, from, from.Add(24*time.Hour))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "unable to compute daily total", err)
	}
	return &models.DailyLimitStatus{
		CustomerID: customerID,
		TotalToday: total,
		DailyLimit: s.cfg.DailyLimitTRY,
		Remaining:  s.cfg.DailyLimitTRY.Sub(total),
	}, nil
}

// startOfDayUTC truncates t to UTC midnight; the daily limit runs on UTC
// calendar days.
func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
