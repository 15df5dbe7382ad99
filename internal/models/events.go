package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys on the moneybee.events topic exchange.
const (
	RoutingKeyTransferCreated   = "transfer.created"
	RoutingKeyTransferCompleted = "transfer.completed"
	RoutingKeyTransferCancelled = "transfer.cancelled"

	RoutingKeyCustomerStatusChanged = "customer.status.changed"
	RoutingKeyCustomerCreated       = "customer.created"
	RoutingKeyCustomerDeleted       = "customer.deleted"
)

// TransferCreatedEvent is published after a transfer is persisted as pending.
type TransferCreatedEvent struct {
	TransferID uuid.UUID       `json:"transfer_id"`
	SenderID   uuid.UUID       `json:"sender_id"`
	ReceiverID uuid.UUID       `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   Currency        `json:"currency"`
}

// TransferCompletedEvent is published after a successful pickup.
type TransferCompletedEvent struct {
	TransferID      uuid.UUID `json:"transfer_id"`
	TransactionCode string    `json:"transaction_code"`
}

// TransferCancelledEvent is published for both user and system cancellations.
type TransferCancelledEvent struct {
	TransferID uuid.UUID `json:"transfer_id"`
	Reason     string    `json:"reason"`
}

// CustomerStatusChangedEvent is consumed by the reactor. A transition to
// blocked cascade-cancels the customer's pending transfers.
type CustomerStatusChangedEvent struct {
	CustomerID     uuid.UUID      `json:"customer_id"`
	PreviousStatus CustomerStatus `json:"previous_status"`
	NewStatus      CustomerStatus `json:"new_status"`
	Reason         string         `json:"reason,omitempty"`
}

// CustomerCreatedEvent is observational for the reactor; no mutation happens.
type CustomerCreatedEvent struct {
	CustomerID uuid.UUID `json:"customer_id"`
	NationalID string    `json:"national_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Timestamp  time.Time `json:"timestamp"`
}

// CustomerDeletedEvent triggers the same cascade as a block.
type CustomerDeletedEvent struct {
	CustomerID uuid.UUID `json:"customer_id"`
	NationalID string    `json:"national_id"`
	Timestamp  time.Time `json:"timestamp"`
}
