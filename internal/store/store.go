package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneybee/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrTransferNotFound         = errors.New("transfer not found")
	ErrDuplicateIdempotencyKey  = errors.New("duplicate idempotency key")
	ErrDuplicateTransactionCode = errors.New("duplicate transaction code")
	ErrConcurrentModification   = errors.New("concurrent modification detected")
)

// CreateTransferParams contains everything the engine computed for a new
// transfer row. The store persists it verbatim; all business decisions
// (normalization, fees, risk, approval hold) happen before this call.
type CreateTransferParams struct {
	ID                 uuid.UUID
	SenderID           uuid.UUID
	ReceiverID         uuid.UUID
	SenderNationalID   string
	ReceiverNationalID string
	Amount             decimal.Decimal
	Currency           models.Currency
	AmountInTRY        decimal.Decimal
	// ExchangeRate is nil for TRY transfers and set for every other currency.
	ExchangeRate          *decimal.Decimal
	TransactionFee        decimal.Decimal
	TransactionCode       string
	Status                models.TransferStatus
	RiskLevel             models.RiskLevel
	IdempotencyKey        string
	Description           string
	ApprovalRequiredUntil *time.Time
	CreatedAt             time.Time
}

// MarkCompletedParams moves a Pending transfer to Completed. Version is the
// concurrency token read by the caller; the write fails with
// ErrConcurrentModification when another writer got there first.
type MarkCompletedParams struct {
	ID          uuid.UUID
	Version     int64
	CompletedAt time.Time
}

// MarkCancelledParams moves a Pending transfer to Cancelled with a reason.
type MarkCancelledParams struct {
	ID          uuid.UUID
	Version     int64
	CancelledAt time.Time
	Reason      string
}

// TransferStore defines the contract that every backend (SQLite, Postgres)
// must satisfy.
type TransferStore interface {
	// CreateTransfer persists a new row. Returns ErrDuplicateIdempotencyKey
	// when the idempotency key is already taken (callers read the winner back)
	// and ErrDuplicateTransactionCode on a code collision.
	CreateTransfer(ctx context.Context, params CreateTransferParams) (*models.Transfer, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.Transfer, error)
	GetByCode(ctx context.Context, code string) (*models.Transfer, error)
	// GetByIdempotencyKey returns the transfer holding the key, or
	// ErrTransferNotFound. Keys are globally unique across senders.
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Transfer, error)

	MarkCompleted(ctx context.Context, params MarkCompletedParams) (*models.Transfer, error)
	MarkCancelled(ctx context.Context, params MarkCancelledParams) (*models.Transfer, error)

	// SumDailyAmountTRY totals amount_in_try over the sender's Pending and
	// Completed transfers created in [from, to).
	SumDailyAmountTRY(ctx context.Context, senderID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
	// ListByCustomer returns the newest transfers where the customer is
	// sender or receiver, capped at limit.
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Transfer, error)
	// ListPendingByCustomer returns every Pending transfer involving the
	// customer, oldest first, for cascade cancellation.
	ListPendingByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Transfer, error)
	CodeExists(ctx context.Context, code string) (bool, error)

	Ping(ctx context.Context) error
	Close()
}
