package lock

import (
	"context"
	"errors"
	"fmt"

	"moneybee/internal/models"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check: *RedisManager must satisfy Manager.
var _ Manager = (*RedisManager)(nil)

// RedisManager implements Manager on Redis via redsync: SET NX with a random
// value for the lease, compare-and-delete on release, so an expired holder
// can never free a successor's lease.
type RedisManager struct {
	rs  *redsync.Redsync
	cfg models.LockConfig
}

func NewRedisManager(client *redis.Client, cfg models.LockConfig) *RedisManager {
	return &RedisManager{
		rs:  redsync.New(goredis.NewPool(client)),
		cfg: cfg,
	}
}

func (m *RedisManager) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	mutex := m.rs.NewMutex("moneybee:lock:"+name,
		redsync.WithExpiry(m.cfg.Lease),
		redsync.WithTries(m.cfg.AcquireAttempts),
		redsync.WithRetryDelayFunc(retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return fmt.Errorf("lock %s: %w", name, ErrNotAcquired)
		}
		return fmt.Errorf("lock %s: %w", name, err)
	}

	defer func() {
		// Unlock uses its own context; the caller's may already be done.
		if _, err := mutex.Unlock(); err != nil {
			zap.L().Warn("Failed to release lock; lease will expire",
				zap.String("lock", name), zap.Error(err))
		}
	}()

	return fn(ctx)
}
