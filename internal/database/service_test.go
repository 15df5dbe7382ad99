package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"moneybee/internal/models"
	"moneybee/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func setupTestStore(t *testing.T) (*Service, func()) {
	t.Helper()

	cfg := models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "transfers.db"),
		MaxOpenConns:    2,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
	}

	service, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		service.Close()
	}

	return service, cleanup
}

func testCreateParams(code, idempotencyKey string) store.CreateTransferParams {
	return store.CreateTransferParams{
		ID:                 uuid.New(),
		SenderID:           uuid.New(),
		ReceiverID:         uuid.New(),
		SenderNationalID:   "15054682652",
		ReceiverNationalID: "12345678950",
		Amount:             decimal.NewFromInt(500),
		Currency:           models.CurrencyTRY,
		AmountInTRY:        decimal.NewFromInt(500),
		TransactionFee:     decimal.NewFromInt(10),
		TransactionCode:    code,
		Status:             models.StatusPending,
		RiskLevel:          models.RiskLow,
		IdempotencyKey:     idempotencyKey,
		Description:        "rent",
		CreatedAt:          time.Now().UTC(),
	}
}

func TestCreateAndGetTransfer(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	rate := decimal.RequireFromString("32.5")
	params := testCreateParams("AAAA111122", "key-create-1")
	params.Currency = models.CurrencyUSD
	params.Amount = decimal.NewFromInt(100)
	params.AmountInTRY = decimal.NewFromInt(3250)
	params.ExchangeRate = &rate

	created, err := service.CreateTransfer(ctx, params)
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	if created.ID != params.ID {
		t.Errorf("Expected id %s, got %s", params.ID, created.ID)
	}
	if created.Status != models.StatusPending {
		t.Errorf("Expected status pending, got %s", created.Status)
	}
	if created.Version != 1 {
		t.Errorf("Expected version 1, got %d", created.Version)
	}
	if created.ExchangeRate == nil || !created.ExchangeRate.Equal(rate) {
		t.Errorf("Expected exchange rate %s, got %v", rate, created.ExchangeRate)
	}
	if !created.AmountInTRY.Equal(params.AmountInTRY) {
		t.Errorf("Expected amount_in_try %s, got %s", params.AmountInTRY, created.AmountInTRY)
	}
	if created.ApprovalRequiredUntil != nil {
		t.Errorf("Expected no approval hold, got %v", created.ApprovalRequiredUntil)
	}
	if created.CompletedAt != nil || created.CancelledAt != nil {
		t.Error("Expected no terminal timestamps on a fresh row")
	}

	byID, err := service.GetByID(ctx, params.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID.TransactionCode != params.TransactionCode {
		t.Errorf("Expected code %s, got %s", params.TransactionCode, byID.TransactionCode)
	}

	byCode, err := service.GetByCode(ctx, params.TransactionCode)
	if err != nil {
		t.Fatalf("GetByCode failed: %v", err)
	}
	if byCode.ID != params.ID {
		t.Errorf("Expected id %s, got %s", params.ID, byCode.ID)
	}

	byKey, err := service.GetByIdempotencyKey(ctx, params.IdempotencyKey)
	if err != nil {
		t.Fatalf("GetByIdempotencyKey failed: %v", err)
	}
	if byKey.ID != params.ID {
		t.Errorf("Expected id %s, got %s", params.ID, byKey.ID)
	}
	if byKey.IdempotencyKey != params.IdempotencyKey {
		t.Errorf("Expected idempotency key %q, got %q", params.IdempotencyKey, byKey.IdempotencyKey)
	}
}

func TestCreateTransferTRYHasNoRate(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	created, err := service.CreateTransfer(ctx, testCreateParams("TRY0000001", "key-try-1"))
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}
	if created.ExchangeRate != nil {
		t.Errorf("Expected nil exchange rate for TRY, got %v", created.ExchangeRate)
	}
}

func TestCreateTransferDuplicateIdempotencyKey(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := service.CreateTransfer(ctx, testCreateParams("CODE000001", "key-dup")); err != nil {
		t.Fatalf("First CreateTransfer failed: %v", err)
	}

	_, err := service.CreateTransfer(ctx, testCreateParams("CODE000002", "key-dup"))
	if !errors.Is(err, store.ErrDuplicateIdempotencyKey) {
		t.Fatalf("Expected ErrDuplicateIdempotencyKey, got %v", err)
	}
}

func TestCreateTransferDuplicateCode(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := service.CreateTransfer(ctx, testCreateParams("CODE000003", "key-a")); err != nil {
		t.Fatalf("First CreateTransfer failed: %v", err)
	}

	_, err := service.CreateTransfer(ctx, testCreateParams("CODE000003", "key-b"))
	if !errors.Is(err, store.ErrDuplicateTransactionCode) {
		t.Fatalf("Expected ErrDuplicateTransactionCode, got %v", err)
	}
}

func TestCreateTransferEmptyKeysDoNotCollide(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := service.CreateTransfer(ctx, testCreateParams("CODE000004", "")); err != nil {
		t.Fatalf("First keyless CreateTransfer failed: %v", err)
	}
	if _, err := service.CreateTransfer(ctx, testCreateParams("CODE000005", "")); err != nil {
		t.Fatalf("Second keyless CreateTransfer failed: %v", err)
	}
}

func TestGetTransferNotFound(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := service.GetByID(ctx, uuid.New()); !errors.Is(err, store.ErrTransferNotFound) {
		t.Errorf("GetByID: expected ErrTransferNotFound, got %v", err)
	}
	if _, err := service.GetByCode(ctx, "NOPE000000"); !errors.Is(err, store.ErrTransferNotFound) {
		t.Errorf("GetByCode: expected ErrTransferNotFound, got %v", err)
	}
	if _, err := service.GetByIdempotencyKey(ctx, "missing"); !errors.Is(err, store.ErrTransferNotFound) {
		t.Errorf("GetByIdempotencyKey: expected ErrTransferNotFound, got %v", err)
	}
}

func TestMarkCompleted(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	created, err := service.CreateTransfer(ctx, testCreateParams("CODE000006", "key-complete"))
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	completedAt := time.Now().UTC()
	completed, err := service.MarkCompleted(ctx, store.MarkCompletedParams{
		ID:          created.ID,
		Version:     created.Version,
		CompletedAt: completedAt,
	})
	if err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	if completed.Status != models.StatusCompleted {
		t.Errorf("Expected status completed, got %s", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Fatal("Expected completed_at to be set")
	}
	if completed.Version != created.Version+1 {
		t.Errorf("Expected version %d, got %d", created.Version+1, completed.Version)
	}
}

func TestMarkCompletedStaleVersion(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	created, err := service.CreateTransfer(ctx, testCreateParams("CODE000007", "key-stale"))
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	// First writer wins.
	if _, err := service.MarkCompleted(ctx, store.MarkCompletedParams{
		ID: created.ID, Version: created.Version, CompletedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	// Second writer holds the stale token.
	_, err = service.MarkCancelled(ctx, store.MarkCancelledParams{
		ID: created.ID, Version: created.Version, CancelledAt: time.Now().UTC(), Reason: "late",
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}

	// The winning write is untouched.
	current, err := service.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if current.Status != models.StatusCompleted {
		t.Errorf("Expected status completed after stale write, got %s", current.Status)
	}
}

func TestMarkCancelled(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	created, err := service.CreateTransfer(ctx, testCreateParams("CODE000008", "key-cancel"))
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	cancelled, err := service.MarkCancelled(ctx, store.MarkCancelledParams{
		ID:          created.ID,
		Version:     created.Version,
		CancelledAt: time.Now().UTC(),
		Reason:      "customer request",
	})
	if err != nil {
		t.Fatalf("MarkCancelled failed: %v", err)
	}

	if cancelled.Status != models.StatusCancelled {
		t.Errorf("Expected status cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Error("Expected cancelled_at to be set")
	}
	if cancelled.CancellationReason != "customer request" {
		t.Errorf("Expected reason %q, got %q", "customer request", cancelled.CancellationReason)
	}
	if cancelled.CompletedAt != nil {
		t.Error("Expected completed_at to stay empty on a cancelled row")
	}
}

func TestSumDailyAmountTRY(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	senderID := uuid.New()
	dayStart := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	insert := func(code string, amountTRY string, status models.TransferStatus, createdAt time.Time) {
		t.Helper()
		params := testCreateParams(code, "")
		params.SenderID = senderID
		params.AmountInTRY = decimal.RequireFromString(amountTRY)
		params.Status = status
		params.CreatedAt = createdAt
		if _, err := service.CreateTransfer(ctx, params); err != nil {
			t.Fatalf("CreateTransfer(%s) failed: %v", code, err)
		}
	}

	insert("DAILY00001", "1000.25", models.StatusPending, dayStart.Add(1*time.Hour))
	insert("DAILY00002", "2000.50", models.StatusCompleted, dayStart.Add(2*time.Hour))
	insert("DAILY00003", "400", models.StatusCancelled, dayStart.Add(3*time.Hour)) // excluded: cancelled
	insert("DAILY00004", "300", models.StatusFailed, dayStart.Add(4*time.Hour))    // excluded: failed
	insert("DAILY00005", "999", models.StatusPending, dayStart.Add(-1*time.Hour))  // excluded: before window
	insert("DAILY00006", "888", models.StatusPending, dayEnd)                      // excluded: at end boundary

	// A different sender never counts.
	other := testCreateParams("DAILY00007", "")
	other.AmountInTRY = decimal.NewFromInt(5000)
	other.CreatedAt = dayStart.Add(5 * time.Hour)
	if _, err := service.CreateTransfer(ctx, other); err != nil {
		t.Fatalf("CreateTransfer(other sender) failed: %v", err)
	}

	total, err := service.SumDailyAmountTRY(ctx, senderID, dayStart, dayEnd)
	if err != nil {
		t.Fatalf("SumDailyAmountTRY failed: %v", err)
	}

	want := decimal.RequireFromString("3000.75")
	if !total.Equal(want) {
		t.Errorf("Expected daily total %s, got %s", want, total)
	}
}

func TestListByCustomer(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	customerID := uuid.New()
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	asSender := testCreateParams("LIST000001", "")
	asSender.SenderID = customerID
	asSender.CreatedAt = base
	if _, err := service.CreateTransfer(ctx, asSender); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	asReceiver := testCreateParams("LIST000002", "")
	asReceiver.ReceiverID = customerID
	asReceiver.CreatedAt = base.Add(time.Hour)
	if _, err := service.CreateTransfer(ctx, asReceiver); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	unrelated := testCreateParams("LIST000003", "")
	unrelated.CreatedAt = base.Add(2 * time.Hour)
	if _, err := service.CreateTransfer(ctx, unrelated); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	transfers, err := service.ListByCustomer(ctx, customerID, 10)
	if err != nil {
		t.Fatalf("ListByCustomer failed: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("Expected 2 transfers, got %d", len(transfers))
	}
	// Newest first.
	if transfers[0].TransactionCode != "LIST000002" || transfers[1].TransactionCode != "LIST000001" {
		t.Errorf("Expected newest-first ordering, got %s then %s",
			transfers[0].TransactionCode, transfers[1].TransactionCode)
	}

	limited, err := service.ListByCustomer(ctx, customerID, 1)
	if err != nil {
		t.Fatalf("ListByCustomer with limit failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 transfer under limit, got %d", len(limited))
	}
}

func TestListPendingByCustomer(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	customerID := uuid.New()
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	newer := testCreateParams("PEND000001", "")
	newer.SenderID = customerID
	newer.CreatedAt = base.Add(time.Hour)
	if _, err := service.CreateTransfer(ctx, newer); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	older := testCreateParams("PEND000002", "")
	older.ReceiverID = customerID
	older.CreatedAt = base
	if _, err := service.CreateTransfer(ctx, older); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	done := testCreateParams("PEND000003", "")
	done.SenderID = customerID
	done.Status = models.StatusCompleted
	done.CreatedAt = base.Add(2 * time.Hour)
	if _, err := service.CreateTransfer(ctx, done); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	pending, err := service.ListPendingByCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("ListPendingByCustomer failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending transfers, got %d", len(pending))
	}
	// Oldest first.
	if pending[0].TransactionCode != "PEND000002" || pending[1].TransactionCode != "PEND000001" {
		t.Errorf("Expected oldest-first ordering, got %s then %s",
			pending[0].TransactionCode, pending[1].TransactionCode)
	}
}

func TestCodeExists(t *testing.T) {
	service, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	exists, err := service.CodeExists(ctx, "FRESH00001")
	if err != nil {
		t.Fatalf("CodeExists failed: %v", err)
	}
	if exists {
		t.Error("Expected code to be free")
	}

	if _, err := service.CreateTransfer(ctx, testCreateParams("FRESH00001", "")); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	exists, err = service.CodeExists(ctx, "FRESH00001")
	if err != nil {
		t.Fatalf("CodeExists failed: %v", err)
	}
	if !exists {
		t.Error("Expected code to be taken")
	}
}
