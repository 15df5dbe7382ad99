package transfer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"moneybee/internal/apperr"
	"moneybee/internal/metrics"
	"moneybee/internal/models"
)

// CascadeCancel cancels every pending transfer the customer is party to,
// sender or receiver, with the given system reason. Rows that went terminal
// between the listing and the write are skipped, which is what makes an
// at-least-once replay of the same customer event a no-op. Returns the
// number of transfers cancelled.
func (s *Service) CascadeCancel(ctx context.Context, customerID uuid.UUID, reason string) (int, error) {
	pending, err := s.store.ListPendingByCustomer(ctx, customerID)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "unable to list pending transfers", err)
	}

	cancelled := 0
	for _, transfer := range pending {
		if _, err := s.CancelAsSystem(ctx, transfer.TransactionCode, reason); err != nil {
			if apperr.IsKind(err, apperr.FailedPrecondition) || apperr.IsKind(err, apperr.NotFound) {
				// Lost the race to a completion or another cascade; the row
				// is already terminal.
				zap.L().Debug("Skipping transfer already terminal during cascade",
					zap.String("transfer_id", transfer.ID.String()),
					zap.String("customer_id", customerID.String()))
				continue
			}
			return cancelled, fmt.Errorf("cascade cancel of transfer %s failed: %w", transfer.ID, err)
		}
		cancelled++
		metrics.ReactorCascades.Inc()
	}

	if cancelled > 0 {
		zap.L().Info("Cascade-cancelled pending transfers",
			zap.String("customer_id", customerID.String()),
			zap.String("reason", reason),
			zap.Int("cancelled", cancelled))
	}
	return cancelled, nil
}

// ReconcileCustomer re-derives the cascade from the customer's current
// status instead of a bus event: the customer record is the source of truth,
// so a missed or lost event is recoverable by running this sweep.
func (s *Service) ReconcileCustomer(ctx context.Context, customerID uuid.UUID) (int, error) {
	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			// Deleted customers may be gone from the collaborator entirely;
			// their pending transfers still must not stay claimable.
			return s.CascadeCancel(ctx, customerID, fmt.Sprintf("customer %s was deleted", customerID))
		}
		return 0, apperr.FromCollaborator("customer service", err)
	}

	switch customer.Status {
	case models.CustomerBlocked:
		return s.CascadeCancel(ctx, customerID, fmt.Sprintf("customer %s was blocked", customerID))
	case models.CustomerDeleted:
		return s.CascadeCancel(ctx, customerID, fmt.Sprintf("customer %s was deleted", customerID))
	default:
		zap.L().Info("Customer in good standing; nothing to reconcile",
			zap.String("customer_id", customerID.String()),
			zap.String("status", string(customer.Status)))
		return 0, nil
	}
}
