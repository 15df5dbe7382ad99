package models

import (
	"github.com/shopspring/decimal"
)

// CreateTransferRequest is the POST /api/transfers body. The idempotency key
// travels in the X-Idempotency-Key header, not in the body.
type CreateTransferRequest struct {
	SenderNationalID   string          `json:"sender_national_id" validate:"required,len=11,numeric"`
	ReceiverNationalID string          `json:"receiver_national_id" validate:"required,len=11,numeric"`
	Amount             decimal.Decimal `json:"amount" validate:"required"`
	Currency           Currency        `json:"currency" validate:"required,oneof=TRY USD EUR GBP"`
	Description        string          `json:"description" validate:"max=200"`
}

// CompleteTransferRequest is the POST /api/transfers/{code}/complete body.
// The receiver re-presents their national id at the counter.
type CompleteTransferRequest struct {
	ReceiverNationalID string `json:"receiver_national_id" validate:"required,len=11,numeric"`
}

// CancelTransferRequest is the POST /api/transfers/{code}/cancel body.
type CancelTransferRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

// Envelope is the uniform response wrapper of every endpoint.
type Envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data"`
	Message *string  `json:"message"`
	Errors  []string `json:"errors"`
}

// HealthStatus reports reachability of the server's dependencies.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// FeeQuote is a convenience read-model echoing the deterministic fee formula.
type FeeQuote struct {
	AmountInTRY decimal.Decimal `json:"amount_in_try"`
	Fee         decimal.Decimal `json:"fee"`
}
