package cache

import (
	"context"
	"time"
)

// ValidationCache stores short-lived API-key validation verdicts for the
// admission filter. Entries are last-writer-wins; staleness is bounded by the
// TTL the writer chose.
type ValidationCache interface {
	// Get returns the cached verdict and whether the key was present.
	Get(ctx context.Context, key string) (valid bool, found bool, err error)
	Set(ctx context.Context, key string, valid bool, ttl time.Duration) error
}
