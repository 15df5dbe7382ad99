package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"moneybee/internal/apperr"
	"moneybee/internal/clients"
	"moneybee/internal/identity"
	"moneybee/internal/lock"
	"moneybee/internal/metrics"
	"moneybee/internal/models"
	"moneybee/internal/store"
)

// codeDrawAttempts bounds the collision retry loop; with a 36^10 code space
// more than one retry is already extraordinary.
const codeDrawAttempts = 8

// CreateRequest is the engine-level input for a new transfer. The
// idempotency key is mandatory: it is the only duplicate-suppression handle
// the caller has.
type CreateRequest struct {
	SenderNationalID   string
	ReceiverNationalID string
	Amount             decimal.Decimal
	Currency           models.Currency
	Description        string
	IdempotencyKey     string
}

// Create runs the admission pipeline: idempotency, customer resolution, FX
// normalization, the lock-guarded daily-limit gate, fraud, fee, approval
// hold, code generation, persist, publish. A replayed key returns the
// committed row with no new side effects.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Transfer, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	// Fast path: a committed transfer already holds the key. The unique
	// constraint at persist time remains the correctness mechanism; this
	// lookup only skips collaborator calls for obvious replays.
	if existing, err := s.store.GetByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		return s.replay(existing)
	} else if !errors.Is(err, store.ErrTransferNotFound) {
		return nil, apperr.Wrap(apperr.Internal, "unable to check idempotency key", err)
	}

	sender, receiver, err := s.resolveParties(ctx, req)
	if err != nil {
		return nil, err
	}

	amountInTRY, exchangeRate, err := s.normalizeAmount(ctx, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	var (
		created *models.Transfer
		replay  bool
	)
	lockErr := s.locks.WithLock(ctx, "daily-limit:"+sender.ID.String(), func(ctx context.Context) error {
		created, replay, err = s.admitAndPersist(ctx, req, sender, receiver, amountInTRY, exchangeRate)
		return err
	})
	if lockErr != nil {
		if errors.Is(lockErr, lock.ErrNotAcquired) {
			return nil, apperr.Wrap(apperr.Unavailable, "lock busy", lockErr)
		}
		return nil, lockErr
	}

	if replay {
		return s.replay(created)
	}

	metrics.TransfersCreated.Inc()
	s.publish(ctx, models.RoutingKeyTransferCreated, models.TransferCreatedEvent{
		TransferID: created.ID,
		SenderID:   created.SenderID,
		ReceiverID: created.ReceiverID,
		Amount:     created.Amount,
		Currency:   created.Currency,
	}, created.ID)

	return created, nil
}

func (s *Service) validateCreate(req CreateRequest) error {
	if req.IdempotencyKey == "" {
		return apperr.New(apperr.InvalidArgument, "idempotency key required")
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return apperr.New(apperr.InvalidArgument, "amount must be positive")
	}
	if !req.Currency.IsValid() {
		return apperr.Newf(apperr.InvalidArgument, "unknown currency %q", req.Currency)
	}
	if s.cfg.ValidateNationalIDs {
		if !identity.ValidNationalID(req.SenderNationalID) {
			return apperr.New(apperr.InvalidArgument, "sender national id is invalid")
		}
		if !identity.ValidNationalID(req.ReceiverNationalID) {
			return apperr.New(apperr.InvalidArgument, "receiver national id is invalid")
		}
	}
	return nil
}

// resolveParties loads both customers and applies the admission policy:
// sender active (and KYC-verified when required), receiver not blocked.
func (s *Service) resolveParties(ctx context.Context, req CreateRequest) (sender, receiver *models.Customer, err error) {
	sender, err = s.customers.GetByNationalID(ctx, req.SenderNationalID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, nil, apperr.New(apperr.NotFound, "sender not found")
		}
		return nil, nil, apperr.FromCollaborator("customer service", err)
	}
	if sender.Status != models.CustomerActive {
		return nil, nil, apperr.New(apperr.FailedPrecondition, "sender not active")
	}
	if s.cfg.RequireKYCVerified && !sender.KYCVerified {
		return nil, nil, apperr.New(apperr.FailedPrecondition, "sender not KYC verified")
	}

	receiver, err = s.customers.GetByNationalID(ctx, req.ReceiverNationalID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, nil, apperr.New(apperr.NotFound, "receiver not found")
		}
		return nil, nil, apperr.FromCollaborator("customer service", err)
	}
	if receiver.Status == models.CustomerBlocked {
		return nil, nil, apperr.New(apperr.FailedPrecondition, "receiver blocked")
	}

	return sender, receiver, nil
}

// normalizeAmount freezes the exchange rate at creation. TRY passes through
// with no rate; anything else is quoted by the collaborator and rounded to
// two decimals half-up.
func (s *Service) normalizeAmount(ctx context.Context, amount decimal.Decimal, currency models.Currency) (decimal.Decimal, *decimal.Decimal, error) {
	if currency == models.CurrencyTRY {
		return amount, nil, nil
	}
	rate, err := s.rates.GetRate(ctx, currency, models.CurrencyTRY)
	if err != nil {
		if apperr.IsKind(err, apperr.Unavailable) {
			return decimal.Zero, nil, err
		}
		return decimal.Zero, nil, apperr.FromCollaborator("exchange rate service", err)
	}
	amountInTRY := amount.Mul(rate).Round(2)
	// Every persisted transfer carries a positive TRY amount; an amount that
	// rounds to zero would skip the daily limit while still charging a fee.
	if amountInTRY.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil, apperr.Newf(apperr.InvalidArgument,
			"amount %s %s is too small to convert", amount, currency)
	}
	return amountInTRY, &rate, nil
}

// admitAndPersist runs inside the daily-limit lease: limit check, fraud,
// fee, approval hold, code draw, and the atomic persist with the idempotency
// unique constraint. A duplicate-key violation means another request with
// the same key committed first; the winner's row is read back and flagged as
// a replay.
func (s *Service) admitAndPersist(ctx context.Context, req CreateRequest, sender, receiver *models.Customer, amountInTRY decimal.Decimal, exchangeRate *decimal.Decimal) (*models.Transfer, bool, error) {
	from := startOfDayUTC(s.now())
	dailyTotal, err := s.store.SumDailyAmountTRY(ctx, sender.ID, from, from.Add(24*time.Hour))
	if err != nil {
		return nil, false, apperr.Wrap(apperr.Internal, "unable to compute daily total", err)
	}
	if dailyTotal.Add(amountInTRY).GreaterThan(s.cfg.DailyLimitTRY) {
		metrics.DailyLimitRejections.Inc()
		return nil, false, apperr.Newf(apperr.FailedPrecondition,
			"daily limit exceeded; remaining=%s", s.cfg.DailyLimitTRY.Sub(dailyTotal))
	}

	risk, err := s.fraud.Check(ctx, clients.FraudCheckRequest{
		SenderID:         sender.ID,
		ReceiverID:       receiver.ID,
		AmountInTRY:      amountInTRY,
		SenderNationalID: sender.NationalID,
	})
	if err != nil {
		return nil, false, apperr.FromCollaborator("fraud service", err)
	}

	now := s.now().UTC()
	params := store.CreateTransferParams{
		ID:                 uuid.New(),
		SenderID:           sender.ID,
		ReceiverID:         receiver.ID,
		SenderNationalID:   sender.NationalID,
		ReceiverNationalID: receiver.NationalID,
		Amount:             req.Amount,
		Currency:           req.Currency,
		AmountInTRY:        amountInTRY,
		ExchangeRate:       exchangeRate,
		RiskLevel:          risk,
		IdempotencyKey:     req.IdempotencyKey,
		Description:        req.Description,
		CreatedAt:          now,
	}

	if risk == models.RiskHigh {
		// Recorded business outcome, not an error path failure: the row is
		// persisted as failed with zero fee and no event, then the rejection
		// surfaces to the caller.
		params.Status = models.StatusFailed
		params.TransactionFee = decimal.Zero
		if _, _, err := s.persistWithFreshCode(ctx, params, false); err != nil {
			return nil, false, err
		}
		metrics.TransfersFailed.Inc()
		zap.L().Warn("Transfer rejected with high fraud risk",
			zap.String("sender_id", sender.ID.String()),
			zap.String("receiver_id", receiver.ID.String()),
			zap.String("amount_in_try", amountInTRY.String()))
		return nil, false, apperr.New(apperr.FailedPrecondition, "high fraud risk")
	}

	params.Status = models.StatusPending
	params.TransactionFee = CalculateFee(amountInTRY, s.cfg.FeeBase, s.cfg.FeePercent)
	if amountInTRY.GreaterThan(s.cfg.HighAmountThreshold) {
		until := now.Add(s.cfg.ApprovalWait)
		params.ApprovalRequiredUntil = &until
	}

	return s.persistWithFreshCode(ctx, params, true)
}

// persistWithFreshCode draws codes until the insert lands. The optional
// CodeExists pre-check keeps collision retries off the write path; the
// unique index stays the hard guarantee either way.
func (s *Service) persistWithFreshCode(ctx context.Context, params store.CreateTransferParams, precheck bool) (*models.Transfer, bool, error) {
	for attempt := 0; attempt < codeDrawAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, false, apperr.Wrap(apperr.Internal, "unable to generate transaction code", err)
		}

		if precheck {
			exists, err := s.store.CodeExists(ctx, code)
			if err != nil {
				return nil, false, apperr.Wrap(apperr.Internal, "unable to check transaction code", err)
			}
			if exists {
				continue
			}
		}

		params.TransactionCode = code
		created, err := s.store.CreateTransfer(ctx, params)
		switch {
		case err == nil:
			return created, false, nil
		case errors.Is(err, store.ErrDuplicateTransactionCode):
			continue
		case errors.Is(err, store.ErrDuplicateIdempotencyKey):
			winner, readErr := s.store.GetByIdempotencyKey(ctx, params.IdempotencyKey)
			if readErr != nil {
				return nil, false, apperr.Wrap(apperr.Internal, "unable to read back idempotent transfer", readErr)
			}
			return winner, true, nil
		default:
			return nil, false, apperr.Wrap(apperr.Internal, "unable to persist transfer", err)
		}
	}
	return nil, false, apperr.New(apperr.Internal, "transaction code space exhausted")
}

// replay converts a committed row back into the original create outcome: a
// pending (or since-settled) transfer replays as success, a fraud-failed row
// replays the same rejection. No events are re-emitted.
func (s *Service) replay(existing *models.Transfer) (*models.Transfer, error) {
	metrics.IdempotentReplays.Inc()
	if existing.Status == models.StatusFailed {
		return nil, apperr.New(apperr.FailedPrecondition, "high fraud risk")
	}
	return existing, nil
}

// publish emits a post-commit event. Failure never rolls the commit back:
// the committed id is logged so an operator or reconciler can republish.
func (s *Service) publish(ctx context.Context, routingKey string, event any, transferID uuid.UUID) {
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		metrics.PublishFailures.Inc()
		zap.L().Error("Failed to publish event for committed transfer",
			zap.String("routing_key", routingKey),
			zap.String("transfer_id", transferID.String()),
			zap.Error(err))
	}
}
