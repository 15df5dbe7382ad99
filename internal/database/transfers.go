package database

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
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateTransfer inserts the row the engine prepared. Uniqueness races on the
// idempotency key and the transaction code surface as typed sentinels so the
// engine can read back the winner or regenerate the code.
func (s *Service) CreateTransfer(ctx context.Context, params store.CreateTransferParams) (*models.Transfer, error) {
	createdAt := params.CreatedAt.UTC()
	var approvalUntil *time.Time
	if params.ApprovalRequiredUntil != nil {
		until := params.ApprovalRequiredUntil.UTC()
		approvalUntil = &until
	}

	_, err := s.db.ExecContext(ctx, queryInsertTransfer,
		params.ID, params.SenderID, params.ReceiverID,
		params.SenderNationalID, params.ReceiverNationalID,
		params.Amount, params.Currency, params.AmountInTRY, params.ExchangeRate,
		params.TransactionFee, params.TransactionCode, params.Status, params.RiskLevel,
		nullString(params.IdempotencyKey), params.Description,
		approvalUntil, 1, createdAt)
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
	transfer, err := scanTransfer(s.db.QueryRowContext(ctx, queryGetTransferByID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transfer %s: %w", id, store.ErrTransferNotFound)
		}
		return nil, fmt.Errorf("failed to get transfer by id: %w", err)
	}
	return transfer, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*models.Transfer, error) {
	transfer, err := scanTransfer(s.db.QueryRowContext(ctx, queryGetTransferByCode, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transfer code %s: %w", code, store.ErrTransferNotFound)
		}
		return nil, fmt.Errorf("failed to get transfer by code: %w", err)
	}
	return transfer, nil
}

func (s *Service) GetByIdempotencyKey(ctx context.Context, key string) (*models.Transfer, error) {
	transfer, err := scanTransfer(s.db.QueryRowContext(ctx, queryGetTransferByIdempotencyKey, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("idempotency key: %w", store.ErrTransferNotFound)
		}
		return nil, fmt.Errorf("failed to get transfer by idempotency key: %w", err)
	}
	return transfer, nil
}

// MarkCompleted performs the optimistic write: the UPDATE matches only when
// the stored version equals the token the caller read. Zero rows affected
// means another writer advanced the row first.
func (s *Service) MarkCompleted(ctx context.Context, params store.MarkCompletedParams) (*models.Transfer, error) {
	result, err := s.db.ExecContext(ctx, queryMarkTransferCompleted,
		params.CompletedAt.UTC(), params.ID, params.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to mark transfer completed: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("transfer completion - %w", store.ErrConcurrentModification)
	}

	zap.L().Info("Transfer marked completed", zap.String("transfer_id", params.ID.String()))
	return s.GetByID(ctx, params.ID)
}

func (s *Service) MarkCancelled(ctx context.Context, params store.MarkCancelledParams) (*models.Transfer, error) {
	result, err := s.db.ExecContext(ctx, queryMarkTransferCancelled,
		params.CancelledAt.UTC(), params.Reason, params.ID, params.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to mark transfer cancelled: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("transfer cancellation - %w", store.ErrConcurrentModification)
	}

	zap.L().Info("Transfer marked cancelled",
		zap.String("transfer_id", params.ID.String()),
		zap.String("reason", params.Reason))
	return s.GetByID(ctx, params.ID)
}

func (s *Service) SumDailyAmountTRY(ctx context.Context, senderID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, queryListDailyAmounts, senderID, from.UTC(), to.UTC())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query daily amounts: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan daily amount: %w", err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to iterate daily amounts: %w", err)
	}
	return total, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Transfer, error) {
	rows, err := s.db.QueryContext(ctx, queryListTransfersByCustomer, customerID, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer transfers: %w", err)
	}
	defer rows.Close()
	return collectTransfers(rows)
}

func (s *Service) ListPendingByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Transfer, error) {
	rows, err := s.db.QueryContext(ctx, queryListPendingTransfersByCustomer, customerID, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending transfers: %w", err)
	}
	defer rows.Close()
	return collectTransfers(rows)
}

func (s *Service) CodeExists(ctx context.Context, code string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, queryTransferCodeExists, code).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
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

func collectTransfers(rows *sql.Rows) ([]models.Transfer, error) {
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

// uniqueViolation reports whether err is a SQLite unique-constraint failure
// and returns the message naming the violated column.
func uniqueViolation(err error) (string, bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return sqliteErr.Error(), true
	}
	return "", false
}
