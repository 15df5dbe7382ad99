package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"moneybee/internal/apperr"
	"moneybee/internal/models"
)

// CustomerClient resolves customers in their own bounded context. Lookups
// are read-only here; the transfer service never mutates customers.
type CustomerClient interface {
	GetByNationalID(ctx context.Context, nationalID string) (*models.Customer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

// Compile-time check.
var _ CustomerClient = (*HTTPCustomerClient)(nil)

// HTTPCustomerClient talks to the customer collaborator over HTTP.
type HTTPCustomerClient struct {
	core *httpClient
}

func NewCustomerClient(cfg models.CollaboratorConfig, policy Policy) (*HTTPCustomerClient, error) {
	core, err := newHTTPClient("customer service", cfg, policy)
	if err != nil {
		return nil, err
	}
	return &HTTPCustomerClient{core: core}, nil
}

func (c *HTTPCustomerClient) GetByNationalID(ctx context.Context, nationalID string) (*models.Customer, error) {
	var customer models.Customer
	path := "/api/customers/national-id/" + url.PathEscape(nationalID)
	if err := c.core.do(ctx, http.MethodGet, path, nil, &customer, true); err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.Newf(apperr.NotFound, "customer with national id %s not found", nationalID)
		}
		return nil, fmt.Errorf("unable to resolve customer by national id: %w", err)
	}
	return &customer, nil
}

func (c *HTTPCustomerClient) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := c.core.do(ctx, http.MethodGet, "/api/customers/"+id.String(), nil, &customer, true); err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.Newf(apperr.NotFound, "customer %s not found", id)
		}
		return nil, fmt.Errorf("unable to resolve customer by id: %w", err)
	}
	return &customer, nil
}
