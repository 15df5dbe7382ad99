package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"moneybee/internal/apperr"
	"moneybee/internal/cache"
	"moneybee/internal/clients"
	"moneybee/internal/metrics"
	"moneybee/internal/models"
)

// Filter is the admission check in front of every mutation: key format,
// then a TTL cache, then the issuing auth service. It fails closed — an
// unverifiable key is never admitted.
type Filter struct {
	cache cache.ValidationCache
	auth  clients.AuthClient
	cfg   models.AuthConfig
}

func NewFilter(validationCache cache.ValidationCache, authClient clients.AuthClient, cfg models.AuthConfig) (*Filter, error) {
	if validationCache == nil {
		return nil, fmt.Errorf("validation cache cannot be nil")
	}
	if authClient == nil {
		return nil, fmt.Errorf("auth client cannot be nil")
	}
	return &Filter{cache: validationCache, auth: authClient, cfg: cfg}, nil
}

// Admit validates one presented API key. Every rejection is a
// PermissionDenied whose message is safe to show the caller; the transport
// layer emits them as 401.
func (f *Filter) Admit(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		metrics.AuthRejections.Inc()
		return apperr.New(apperr.PermissionDenied, "API Key is missing")
	}
	if !strings.HasPrefix(apiKey, f.cfg.KeyPrefix) || len(apiKey) < f.cfg.MinKeyLen {
		metrics.AuthRejections.Inc()
		return apperr.New(apperr.PermissionDenied, "API Key has an invalid format")
	}

	hashed := hashKey(apiKey)
	valid, found, err := f.cache.Get(ctx, hashed)
	if err != nil {
		// Cache outage degrades to a direct auth lookup; it never admits.
		zap.L().Warn("Validation cache unreachable; consulting auth service directly", zap.Error(err))
		return f.validateDirect(ctx, apiKey, hashed, false)
	}
	if found {
		if !valid {
			metrics.AuthRejections.Inc()
			return apperr.New(apperr.PermissionDenied, "API Key is invalid or expired")
		}
		return nil
	}

	return f.validateDirect(ctx, apiKey, hashed, true)
}

// validateDirect consults the auth collaborator and, when the cache is
// healthy, stores the verdict under its TTL: 5 minutes for valid keys, 1
// minute for invalid ones so a revoked key recovers quickly.
func (f *Filter) validateDirect(ctx context.Context, apiKey, hashed string, cacheResult bool) error {
	valid, err := f.auth.Validate(ctx, apiKey)
	if err != nil {
		metrics.AuthRejections.Inc()
		zap.L().Error("Auth service unreachable; failing closed", zap.Error(err))
		return apperr.Wrap(apperr.PermissionDenied, "unable to verify API Key", err)
	}

	if cacheResult {
		ttl := f.cfg.ValidTTL
		if !valid {
			ttl = f.cfg.InvalidTTL
		}
		if err := f.cache.Set(ctx, hashed, valid, ttl); err != nil {
			zap.L().Warn("Unable to cache key validation verdict", zap.Error(err))
		}
	}

	if !valid {
		metrics.AuthRejections.Inc()
		return apperr.New(apperr.PermissionDenied, "API Key is invalid or expired")
	}
	return nil
}

// hashKey keeps raw keys out of the cache and its logs.
func hashKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
