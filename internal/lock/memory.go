package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"moneybee/internal/models"
)

// Compile-time check: *MemoryManager must satisfy Manager.
var _ Manager = (*MemoryManager)(nil)

// MemoryManager is the single-process Manager used when no Redis address is
// configured (development and tests). It keeps the same lease and
// holder-token semantics as the Redis implementation.
type MemoryManager struct {
	cfg models.LockConfig

	mu     sync.Mutex
	leases map[string]memoryLease
	next   uint64
}

type memoryLease struct {
	token  uint64
	expiry time.Time
}

func NewMemoryManager(cfg models.LockConfig) *MemoryManager {
	return &MemoryManager{
		cfg:    cfg,
		leases: make(map[string]memoryLease),
	}
}

func (m *MemoryManager) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	token, acquired := m.tryAcquire(name)
	for attempt := 0; !acquired && attempt < m.cfg.AcquireAttempts-1; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("lock %s: %w", name, ctx.Err())
		case <-time.After(retryDelay(attempt)):
		}
		token, acquired = m.tryAcquire(name)
	}
	if !acquired {
		return fmt.Errorf("lock %s: %w", name, ErrNotAcquired)
	}

	defer m.release(name, token)
	return fn(ctx)
}

// tryAcquire takes the lease if it is free or expired.
func (m *MemoryManager) tryAcquire(name string) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lease, held := m.leases[name]; held && time.Now().Before(lease.expiry) {
		return 0, false
	}
	m.next++
	m.leases[name] = memoryLease{token: m.next, expiry: time.Now().Add(m.cfg.Lease)}
	return m.next, true
}

// release frees the lease only while this holder still owns it; after expiry
// a successor may hold its own token.
func (m *MemoryManager) release(name string, token uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lease, held := m.leases[name]; held && lease.token == token {
		delete(m.leases, name)
	}
}
