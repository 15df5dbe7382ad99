package clients

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"moneybee/internal/apperr"
	"moneybee/internal/models"
)

// ExchangeRateClient quotes currency conversion rates. Any failure surfaces
// as Unavailable: the engine never retries a rate inline and the caller may
// re-issue the create with the same idempotency key.
type ExchangeRateClient interface {
	GetRate(ctx context.Context, from, to models.Currency) (decimal.Decimal, error)
}

// Compile-time check.
var _ ExchangeRateClient = (*HTTPExchangeRateClient)(nil)

// HTTPExchangeRateClient talks to the exchange-rate collaborator over HTTP.
type HTTPExchangeRateClient struct {
	core *httpClient
}

func NewExchangeRateClient(cfg models.CollaboratorConfig, policy Policy) (*HTTPExchangeRateClient, error) {
	core, err := newHTTPClient("exchange rate service", cfg, policy)
	if err != nil {
		return nil, err
	}
	return &HTTPExchangeRateClient{core: core}, nil
}

func (c *HTTPExchangeRateClient) GetRate(ctx context.Context, from, to models.Currency) (decimal.Decimal, error) {
	var response struct {
		Rate decimal.Decimal `json:"rate"`
	}
	query := url.Values{}
	query.Set("from", string(from))
	query.Set("to", string(to))
	if err := c.core.do(ctx, http.MethodGet, "/api/rates?"+query.Encode(), nil, &response, true); err != nil {
		return decimal.Zero, apperr.Wrap(apperr.Unavailable, "exchange rate service", err)
	}
	if response.Rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, apperr.Newf(apperr.Internal, "exchange rate service returned non-positive rate %s", response.Rate)
	}
	return response.Rate, nil
}
