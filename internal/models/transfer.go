package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferStatus is the lifecycle state of a transfer.
type TransferStatus string

const (
	StatusPending   TransferStatus = "pending"
	StatusCompleted TransferStatus = "completed"
	StatusCancelled TransferStatus = "cancelled"
	StatusFailed    TransferStatus = "failed" // assigned at creation only (fraud rejection)
)

// IsValid reports whether the status is one of the known lifecycle states.
func (s TransferStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s TransferStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Currency is one of the fixed set of supported transfer currencies.
type Currency string

const (
	CurrencyTRY Currency = "TRY"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// IsValid reports whether the currency belongs to the supported enumeration.
func (c Currency) IsValid() bool {
	switch c {
	case CurrencyTRY, CurrencyUSD, CurrencyEUR, CurrencyGBP:
		return true
	default:
		return false
	}
}

// RiskLevel is the fraud verdict captured at creation.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Transfer is the aggregate of the system: a single send-with-code-pickup
// record. Customers are referenced by opaque ids only; they live in another
// bounded context and are never foreign-keyed here.
type Transfer struct {
	ID                 uuid.UUID       `json:"id"`
	SenderID           uuid.UUID       `json:"sender_id"`
	ReceiverID         uuid.UUID       `json:"receiver_id"`
	SenderNationalID   string          `json:"sender_national_id"`
	ReceiverNationalID string          `json:"receiver_national_id"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           Currency        `json:"currency"`
	AmountInTRY        decimal.Decimal `json:"amount_in_try"`
	// ExchangeRate is the currency->TRY rate frozen at creation; nil exactly
	// when Currency is TRY.
	ExchangeRate          *decimal.Decimal `json:"exchange_rate,omitempty"`
	TransactionFee        decimal.Decimal  `json:"transaction_fee"`
	TransactionCode       string           `json:"transaction_code"`
	Status                TransferStatus   `json:"status"`
	RiskLevel             RiskLevel        `json:"risk_level"`
	IdempotencyKey        string           `json:"-"`
	Description           string           `json:"description,omitempty"`
	ApprovalRequiredUntil *time.Time       `json:"approval_required_until,omitempty"`
	// Version is the optimistic-concurrency token, advanced by the store on
	// every write.
	Version            int64      `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
}

// InvolvesCustomer reports whether the customer is the sender or the receiver.
func (t *Transfer) InvolvesCustomer(customerID uuid.UUID) bool {
	return t.SenderID == customerID || t.ReceiverID == customerID
}

// RequiresApprovalAt reports whether the approval hold is still running at
// the given instant.
func (t *Transfer) RequiresApprovalAt(now time.Time) bool {
	return t.ApprovalRequiredUntil != nil && t.ApprovalRequiredUntil.After(now)
}

// DailyLimitStatus is the read-model for the daily-limit endpoint.
type DailyLimitStatus struct {
	CustomerID uuid.UUID       `json:"customer_id"`
	TotalToday decimal.Decimal `json:"total_today"`
	DailyLimit decimal.Decimal `json:"daily_limit"`
	Remaining  decimal.Decimal `json:"remaining"`
}
