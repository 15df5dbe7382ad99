package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"moneybee/internal/models"
	"moneybee/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const transferColumns = `
		id, sender_id, receiver_id, sender_national_id, receiver_national_id,
		amount, currency, amount_in_try, exchange_rate, transaction_fee,
		transaction_code, status, risk_level, idempotency_key, description,
		approval_required_until, version, created_at, completed_at, cancelled_at,
		cancellation_reason`

func (s *Service) CreateTransfer(ctx context.Context, params store.CreateTransferParams) (*models.Transfer, error) {
	query := `
		INSERT INTO transfers (
			id, sender_id, receiver_id, sender_national_id, receiver_national_id,
			amount, currency, amount_in_try, exchange_rate, transaction_fee,
			transaction_code, status, risk_level, idempotency_key, description,
			approval_required_until, version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := s.pool.Exec(ctx, query,
		params.ID, params.SenderID, params.ReceiverID,
		params.SenderNationalID, params.ReceiverNationalID,
		params.Amount, params.Currency, params.AmountInTRY, params.ExchangeRate,
		params.TransactionFee, params.TransactionCode, params.Status, params.RiskLevel,
		nullString(params.IdempotencyKey), params.Description,
		params.ApprovalRequiredUntil, 1, params.CreatedAt.UTC())
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch {
			case strings.Contains(constraint, "idempotency_key"):
				return nil, fmt.Errorf("insert transfer: %w", store.ErrDuplicateIdempotencyKey)
			case strings.Contains(constraint, "transaction_code"):
				return nil, fmt.Errorf("insert transfer: %w", store.ErrDuplicateTransactionCode)
			}
		}
		return nil, fmt.Errorf("failed to insert transfer: %w", err)
	}

	zap.L().Info("Transfer row inserted",
		zap.String("transfer_id", params.ID.String()),
		zap.String("transaction_code", params.TransactionCode),
		zap.String("status", string(params.Status)))

	return s.GetByID(ctx, params.ID)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Transfer, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+transferColumns+` FROM transfers WHERE id = $1`, id)
	transfer, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transfer %s: %w", id, store.ErrTransferNotFound)
		}
		return nil, fmt.Errorf("failed to get transfer by id: %w", err)
	}
	return transfer, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*models.Transfer, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+transferColumns+` FROM transfers WHERE transaction_code = $1`, code)
	transfer, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transfer code %s: %w", code, store.ErrTransferNotFound)
		}
		return nil, fmt.Errorf("failed to get transfer by code: %w", err)
	}
	return transfer, nil
}

func (s *Service) GetByIdempotencyKey(ctx context.Context, key string) (*models.Transfer, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+transferColumns+` FROM transfers WHERE idempotency_key = $1`, key)
	transfer, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("idempotency key: %w", store.ErrTransferNotFound)
		}
		return nil, fmt.Errorf("failed to get transfer by idempotency key: %w", err)
	}
	return transfer, nil
}

func (s *Service) MarkCompleted(ctx context.Context, params store.MarkCompletedParams) (*models.Transfer, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transfers
		SET status = 'completed', completed_at = $1, version = version + 1
		WHERE id = $2 AND version = $3`,
		params.CompletedAt.UTC(), params.ID, params.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to mark transfer completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("transfer completion - %w", store.ErrConcurrentModification)
	}

	zap.L().Info("Transfer marked completed", zap.String("transfer_id", params.ID.String()))
	return s.GetByID(ctx, params.ID)
}

func (s *Service) MarkCancelled(ctx context.Context, params store.MarkCancelledParams) (*models.Transfer, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transfers
		SET status = 'cancelled', cancelled_at = $1, cancellation_reason = $2, version = version + 1
		WHERE id = $3 AND version = $4`,
		params.CancelledAt.UTC(), params.Reason, params.ID, params.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to mark transfer cancelled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("transfer cancellation - %w", store.ErrConcurrentModification)
	}

	zap.L().Info("Transfer marked cancelled",
		zap.String("transfer_id", params.ID.String()),
		zap.String("reason", params.Reason))
	return s.GetByID(ctx, params.ID)
}

func (s *Service) SumDailyAmountTRY(ctx context.Context, senderID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_in_try), 0)
		FROM transfers
		WHERE sender_id = $1 AND status IN ('pending', 'completed')
		  AND created_at >= $2 AND created_at < $3`,
		senderID, from.UTC(), to.UTC()).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum daily amounts: %w", err)
	}
	return total, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Transfer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+transferColumns+`
		FROM transfers
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer transfers: %w", err)
	}
	defer rows.Close()
	return collectTransfers(rows)
}

func (s *Service) ListPendingByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Transfer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+transferColumns+`
		FROM transfers
		WHERE (sender_id = $1 OR receiver_id = $1) AND status = 'pending'
		ORDER BY created_at ASC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending transfers: %w", err)
	}
	defer rows.Close()
	return collectTransfers(rows)
}

func (s *Service) CodeExists(ctx context.Context, code string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM transfers WHERE transaction_code = $1 LIMIT 1`, code).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check transaction code: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*models.Transfer, error) {
	var transfer models.Transfer
	var idempotencyKey sql.NullString
	err := row.Scan(
		&transfer.ID, &transfer.SenderID, &transfer.ReceiverID,
		&transfer.SenderNationalID, &transfer.ReceiverNationalID,
		&transfer.Amount, &transfer.Currency, &transfer.AmountInTRY,
		&transfer.ExchangeRate, &transfer.TransactionFee,
		&transfer.TransactionCode, &transfer.Status, &transfer.RiskLevel,
		&idempotencyKey, &transfer.Description,
		&transfer.ApprovalRequiredUntil, &transfer.Version, &transfer.CreatedAt,
		&transfer.CompletedAt, &transfer.CancelledAt, &transfer.CancellationReason)
	if err != nil {
		return nil, err
	}
	transfer.IdempotencyKey = idempotencyKey.String
	return &transfer, nil
}

func collectTransfers(rows pgx.Rows) ([]models.Transfer, error) {
	var transfers []models.Transfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, *transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfers: %w", err)
	}
	return transfers, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// uniqueViolation reports whether err is a Postgres unique-constraint failure
// (SQLSTATE 23505) and returns the violated constraint name.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
