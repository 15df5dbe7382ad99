package transfer

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"moneybee/internal/apperr"
	"moneybee/internal/metrics"
	"moneybee/internal/models"
	"moneybee/internal/store"
)

// Complete hands the money over: the presented national id must match the
// snapshot taken at creation and the approval clock must have elapsed. The
// write carries the row's concurrency token; a mismatch re-reads and
// re-validates before the next attempt.
func (s *Service) Complete(ctx context.Context, code, receiverNationalID string) (*models.Transfer, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.ConcurrencyAttempts; attempt++ {
		if attempt > 0 {
			if err := s.backoff(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		transfer, err := s.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if transfer.Status != models.StatusPending {
			return nil, apperr.Newf(apperr.FailedPrecondition, "status=%s", transfer.Status)
		}
		if transfer.ReceiverNationalID != receiverNationalID {
			return nil, apperr.New(apperr.PermissionDenied, "receiver verification failed")
		}

		now := s.now().UTC()
		if transfer.RequiresApprovalAt(now) {
			minutes := int(math.Ceil(transfer.ApprovalRequiredUntil.Sub(now).Minutes()))
			return nil, apperr.Newf(apperr.FailedPrecondition, "wait %d more minute(s)", minutes)
		}

		completed, err := s.store.MarkCompleted(ctx, store.MarkCompletedParams{
			ID:          transfer.ID,
			Version:     transfer.Version,
			CompletedAt: now,
		})
		if err != nil {
			if errors.Is(err, store.ErrConcurrentModification) {
				lastErr = err
				continue
			}
			return nil, apperr.Wrap(apperr.Internal, "unable to complete transfer", err)
		}

		metrics.TransfersCompleted.Inc()
		s.publish(ctx, models.RoutingKeyTransferCompleted, models.TransferCompletedEvent{
			TransferID:      completed.ID,
			TransactionCode: completed.TransactionCode,
		}, completed.ID)
		return completed, nil
	}
	return nil, apperr.Wrap(apperr.Aborted, "concurrent modification", lastErr)
}

// Cancel voids a pending transfer before pickup. Downstream ledgers treat
// cancelled transfers as owing nothing, which realizes the fee refund.
func (s *Service) Cancel(ctx context.Context, code, reason string) (*models.Transfer, error) {
	if reason == "" {
		reason = "cancelled by user"
	}
	return s.cancel(ctx, code, reason)
}

// CancelAsSystem is the reactor's cascade path; the reason names the
// customer event that triggered it.
func (s *Service) CancelAsSystem(ctx context.Context, code, reason string) (*models.Transfer, error) {
	return s.cancel(ctx, code, reason)
}

func (s *Service) cancel(ctx context.Context, code, reason string) (*models.Transfer, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.ConcurrencyAttempts; attempt++ {
		if attempt > 0 {
			if err := s.backoff(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		transfer, err := s.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if transfer.Status != models.StatusPending {
			return nil, apperr.Newf(apperr.FailedPrecondition, "status=%s", transfer.Status)
		}

		cancelled, err := s.store.MarkCancelled(ctx, store.MarkCancelledParams{
			ID:          transfer.ID,
			Version:     transfer.Version,
			CancelledAt: s.now().UTC(),
			Reason:      reason,
		})
		if err != nil {
			if errors.Is(err, store.ErrConcurrentModification) {
				lastErr = err
				continue
			}
			return nil, apperr.Wrap(apperr.Internal, "unable to cancel transfer", err)
		}

		metrics.TransfersCancelled.Inc()
		s.publish(ctx, models.RoutingKeyTransferCancelled, models.TransferCancelledEvent{
			TransferID: cancelled.ID,
			Reason:     reason,
		}, cancelled.ID)
		return cancelled, nil
	}
	return nil, apperr.Wrap(apperr.Aborted, "concurrent modification", lastErr)
}

// backoff sleeps 100ms << attempt (configurable base) between optimistic
// retries, honoring caller cancellation.
func (s *Service) backoff(ctx context.Context, attempt int) error {
	delay := s.cfg.ConcurrencyBackoff << uint(attempt)
	zap.L().Debug("Retrying after concurrent modification",
		zap.Int("attempt", attempt+1),
		zap.Duration("delay", delay))
	select {
	case <-ctx.Done():
		return apperr.Wrap(apperr.Unavailable, "request cancelled", ctx.Err())
	case <-time.After(delay):
		return nil
	}
}
