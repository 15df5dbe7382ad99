package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneybee/internal/apperr"
	"moneybee/internal/models"
)

func testPolicy() Policy {
	return Policy{
		RetryAttempts:    3,
		BreakerThreshold: 100, // keep the breaker out of the way unless a test wants it
		BreakerCooldown:  time.Minute,
	}
}

func collaborator(url string) models.CollaboratorConfig {
	return models.CollaboratorConfig{BaseURL: url, Timeout: 2 * time.Second}
}

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	if _, err := NewCustomerClient(models.CollaboratorConfig{}, testPolicy()); err == nil {
		t.Error("Expected error for empty base URL")
	}
}

func TestCustomerClientGetByNationalID(t *testing.T) {
	want := models.Customer{
		ID:          uuid.New(),
		NationalID:  "15054682652",
		Status:      models.CustomerActive,
		KYCVerified: true,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/customers/national-id/15054682652" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer server.Close()

	client, err := NewCustomerClient(collaborator(server.URL), testPolicy())
	if err != nil {
		t.Fatalf("NewCustomerClient failed: %v", err)
	}

	got, err := client.GetByNationalID(context.Background(), "15054682652")
	if err != nil {
		t.Fatalf("GetByNationalID failed: %v", err)
	}
	if got.ID != want.ID || got.Status != want.Status || !got.KYCVerified {
		t.Errorf("Unexpected customer %+v", got)
	}
}

func TestCustomerClientNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such customer", http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewCustomerClient(collaborator(server.URL), testPolicy())
	if err != nil {
		t.Fatalf("NewCustomerClient failed: %v", err)
	}

	_, err = client.GetByNationalID(context.Background(), "15054682652")
	if !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("Expected not_found, got %v", err)
	}

	_, err = client.GetByID(context.Background(), uuid.New())
	if !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("Expected not_found by id, got %v", err)
	}
}

func TestFraudClientCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/fraud-checks" {
			t.Errorf("Unexpected %s %s", r.Method, r.URL.Path)
		}
		var req FraudCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode fraud request: %v", err)
		}
		if req.SenderNationalID != "15054682652" {
			t.Errorf("Unexpected sender national id %q", req.SenderNationalID)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"risk_level": "high"})
	}))
	defer server.Close()

	client, err := NewFraudClient(collaborator(server.URL), testPolicy())
	if err != nil {
		t.Fatalf("NewFraudClient failed: %v", err)
	}

	risk, err := client.Check(context.Background(), FraudCheckRequest{
		SenderID:         uuid.New(),
		ReceiverID:       uuid.New(),
		AmountInTRY:      decimal.NewFromInt(500),
		SenderNationalID: "15054682652",
	})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if risk != models.RiskHigh {
		t.Errorf("Expected high, got %s", risk)
	}
}

func TestExchangeRateClientGetRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rates" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to"); from != "USD" || to != "TRY" {
			t.Errorf("Unexpected pair %s->%s", from, to)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"rate": "30.25"})
	}))
	defer server.Close()

	client, err := NewExchangeRateClient(collaborator(server.URL), testPolicy())
	if err != nil {
		t.Fatalf("NewExchangeRateClient failed: %v", err)
	}

	rate, err := client.GetRate(context.Background(), models.CurrencyUSD, models.CurrencyTRY)
	if err != nil {
		t.Fatalf("GetRate failed: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("30.25")) {
		t.Errorf("Expected 30.25, got %s", rate)
	}
}

func TestExchangeRateClientRejectsNonPositiveRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"rate": "0"})
	}))
	defer server.Close()

	client, err := NewExchangeRateClient(collaborator(server.URL), testPolicy())
	if err != nil {
		t.Fatalf("NewExchangeRateClient failed: %v", err)
	}

	_, err = client.GetRate(context.Background(), models.CurrencyUSD, models.CurrencyTRY)
	if !apperr.IsKind(err, apperr.Internal) {
		t.Errorf("Expected internal for a zero rate, got %v", err)
	}
}

func TestExchangeRateClientOutageIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	policy := testPolicy()
	policy.RetryAttempts = 1
	client, err := NewExchangeRateClient(collaborator(server.URL), policy)
	if err != nil {
		t.Fatalf("NewExchangeRateClient failed: %v", err)
	}

	_, err = client.GetRate(context.Background(), models.CurrencyUSD, models.CurrencyTRY)
	if !apperr.IsKind(err, apperr.Unavailable) {
		t.Errorf("Expected unavailable, got %v", err)
	}
}

func TestAuthClientValidate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/keys/validate" {
			t.Errorf("Unexpected %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			APIKey string `json:"api_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"is_valid": req.APIKey == "mb_good"})
	}))
	defer server.Close()

	client, err := NewAuthClient(collaborator(server.URL), testPolicy())
	if err != nil {
		t.Fatalf("NewAuthClient failed: %v", err)
	}
	ctx := context.Background()

	valid, err := client.Validate(ctx, "mb_good")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !valid {
		t.Error("Expected valid verdict")
	}

	valid, err = client.Validate(ctx, "mb_bad")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if valid {
		t.Error("Expected invalid verdict")
	}
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "flaky", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"risk_level": "low"})
	}))
	defer server.Close()

	client, err := NewFraudClient(collaborator(server.URL), testPolicy())
	if err != nil {
		t.Fatalf("NewFraudClient failed: %v", err)
	}

	risk, err := client.Check(context.Background(), FraudCheckRequest{
		SenderID: uuid.New(), ReceiverID: uuid.New(),
		AmountInTRY: decimal.NewFromInt(100), SenderNationalID: "15054682652",
	})
	if err != nil {
		t.Fatalf("Check should recover on retry: %v", err)
	}
	if risk != models.RiskLow {
		t.Errorf("Expected low, got %s", risk)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected 2 calls, got %d", got)
	}
}

func TestClientRejectionDoesNotRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client, err := NewFraudClient(collaborator(server.URL), testPolicy())
	if err != nil {
		t.Fatalf("NewFraudClient failed: %v", err)
	}

	_, err = client.Check(context.Background(), FraudCheckRequest{
		SenderID: uuid.New(), ReceiverID: uuid.New(),
		AmountInTRY: decimal.NewFromInt(100), SenderNationalID: "15054682652",
	})
	if !apperr.IsKind(err, apperr.Internal) {
		t.Errorf("Expected internal for a 4xx rejection, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("4xx must not retry, got %d calls", got)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	policy := Policy{RetryAttempts: 1, BreakerThreshold: 2, BreakerCooldown: time.Minute}
	client, err := NewAuthClient(collaborator(server.URL), policy)
	if err != nil {
		t.Fatalf("NewAuthClient failed: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := client.Validate(ctx, "mb_any"); err == nil {
			t.Fatal("Expected failure while the collaborator is down")
		}
	}

	// Threshold reached: the next call short-circuits without touching the wire.
	_, err = client.Validate(ctx, "mb_any")
	if !apperr.IsKind(err, apperr.Unavailable) {
		t.Fatalf("Expected unavailable from the open breaker, got %v", err)
	}
	if !strings.Contains(err.Error(), "circuit open") {
		t.Errorf("Expected circuit-open marker, got %v", err)
	}
}
