package models

import "github.com/google/uuid"

// CustomerStatus mirrors the status enumeration of the customer bounded
// context, as exposed by the Customer collaborator.
type CustomerStatus string

const (
	CustomerActive  CustomerStatus = "active"
	CustomerBlocked CustomerStatus = "blocked"
	CustomerDeleted CustomerStatus = "deleted"
)

// Customer is the read-only projection the transfer engine consumes from the
// Customer collaborator. It is never persisted here.
type Customer struct {
	ID          uuid.UUID      `json:"id"`
	NationalID  string         `json:"national_id"`
	Status      CustomerStatus `json:"status"`
	KYCVerified bool           `json:"kyc_verified"`
}
