package clients

import (
	"context"
	"fmt"
	"net/http"

	"moneybee/internal/models"
)

// AuthClient asks the issuing auth service whether an API key is valid. The
// admission filter fails closed when this call cannot complete.
type AuthClient interface {
	Validate(ctx context.Context, apiKey string) (bool, error)
}

// Compile-time check.
var _ AuthClient = (*HTTPAuthClient)(nil)

// HTTPAuthClient talks to the auth collaborator over HTTP.
type HTTPAuthClient struct {
	core *httpClient
}

func NewAuthClient(cfg models.CollaboratorConfig, policy Policy) (*HTTPAuthClient, error) {
	core, err := newHTTPClient("auth service", cfg, policy)
	if err != nil {
		return nil, err
	}
	return &HTTPAuthClient{core: core}, nil
}

func (c *HTTPAuthClient) Validate(ctx context.Context, apiKey string) (bool, error) {
	request := struct {
		APIKey string `json:"api_key"`
	}{APIKey: apiKey}

	var response struct {
		IsValid bool `json:"is_valid"`
	}
	if err := c.core.do(ctx, http.MethodPost, "/api/keys/validate", request, &response, true); err != nil {
		return false, fmt.Errorf("key validation failed: %w", err)
	}
	return response.IsValid, nil
}
