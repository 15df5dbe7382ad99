package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneybee/internal/models"
)

// FraudCheckRequest carries everything the fraud collaborator scores on.
type FraudCheckRequest struct {
	SenderID         uuid.UUID       `json:"sender_id"`
	ReceiverID       uuid.UUID       `json:"receiver_id"`
	AmountInTRY      decimal.Decimal `json:"amount_in_try"`
	SenderNationalID string          `json:"sender_national_id"`
}

// FraudClient scores a prospective transfer. The collaborator declares the
// check idempotent, so transient failures are retried.
type FraudClient interface {
	Check(ctx context.Context, req FraudCheckRequest) (models.RiskLevel, error)
}

// Compile-time check.
var _ FraudClient = (*HTTPFraudClient)(nil)

// HTTPFraudClient talks to the fraud collaborator over HTTP.
type HTTPFraudClient struct {
	core *httpClient
}

func NewFraudClient(cfg models.CollaboratorConfig, policy Policy) (*HTTPFraudClient, error) {
	core, err := newHTTPClient("fraud service", cfg, policy)
	if err != nil {
		return nil, err
	}
	return &HTTPFraudClient{core: core}, nil
}

func (c *HTTPFraudClient) Check(ctx context.Context, req FraudCheckRequest) (models.RiskLevel, error) {
	var response struct {
		RiskLevel models.RiskLevel `json:"risk_level"`
	}
	if err := c.core.do(ctx, http.MethodPost, "/api/fraud-checks", req, &response, true); err != nil {
		return "", fmt.Errorf("fraud check failed: %w", err)
	}
	return response.RiskLevel, nil
}
