package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/net/http2"

	"moneybee/internal/apperr"
	"moneybee/internal/models"
)

// Policy is the shared resilience policy applied to every collaborator:
// capped exponential retries for idempotent calls and a circuit breaker that
// opens after a run of consecutive failures.
type Policy struct {
	RetryAttempts    int
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// PolicyFromConfig extracts the resilience policy shared by all clients.
func PolicyFromConfig(cfg models.CollaboratorsConfig) Policy {
	return Policy{
		RetryAttempts:    cfg.RetryAttempts,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
	}
}

// statusError is a non-2xx response from a collaborator.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

// httpClient is the outbound core every collaborator client embeds: one
// tuned HTTP transport, a per-collaborator deadline, a circuit breaker, and
// retry-with-backoff for calls the collaborator declares idempotent.
type httpClient struct {
	name    string
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	retries int
}

func newHTTPClient(name string, cfg models.CollaboratorConfig, policy Policy) (*httpClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s collaborator base URL cannot be empty", name)
	}

	client, err := createCustomHTTPClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	threshold := policy.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	cooldown := policy.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})

	retries := policy.RetryAttempts
	if retries <= 0 {
		retries = 1
	}

	return &httpClient{
		name:    name,
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		client:  client,
		breaker: breaker,
		retries: retries,
	}, nil
}

func createCustomHTTPClient() (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{Transport: tr}, nil
}

// do runs one logical call through the breaker. Idempotent calls retry on
// transient failures (network errors, 5xx, 429) with capped exponential
// backoff; everything else fails fast. Determinate outcomes come back as
// *apperr.Error; leftover transient failures classify as Unavailable.
func (c *httpClient) do(ctx context.Context, method, path string, in, out any, idempotent bool) error {
	operation := func() error {
		_, err := c.breaker.Execute(func() (any, error) {
			return nil, c.doOnce(ctx, method, path, in, out)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(apperr.Wrap(apperr.Unavailable, c.name+" circuit open", err))
		}
		var appErr *apperr.Error
		if errors.As(err, &appErr) || !idempotent {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(c.retries-1)), ctx))
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.Unavailable, c.name+" timed out", err)
	}
	return apperr.Wrap(apperr.Unavailable, c.name+" unavailable", err)
}

// doOnce performs a single HTTP exchange under the per-call deadline.
// 404 maps to NotFound, other 4xx to Internal (the collaborator contract was
// violated); 5xx and 429 stay raw so the retry loop can see them as
// transient.
func (c *httpClient) doOnce(ctx context.Context, method, path string, in, out any) error {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("unable to marshal %s request: %w", c.name, err))
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("unable to build %s request: %w", c.name, err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return apperr.Wrap(apperr.Internal, c.name+" returned malformed response", err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return apperr.Wrap(apperr.NotFound, c.name+" resource not found", &statusError{status: resp.StatusCode, body: truncate(body)})
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &statusError{status: resp.StatusCode, body: truncate(body)}
	default:
		return apperr.Wrap(apperr.Internal, c.name+" rejected the request", &statusError{status: resp.StatusCode, body: truncate(body)})
	}
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
