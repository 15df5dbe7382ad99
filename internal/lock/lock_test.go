package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"moneybee/internal/models"
)

func testLockConfig() models.LockConfig {
	return models.LockConfig{Lease: time.Second, AcquireAttempts: 3}
}

func TestMemoryWithLockMutualExclusion(t *testing.T) {
	manager := NewMemoryManager(testLockConfig())
	ctx := context.Background()

	var inside, overlaps int
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, "daily-limit:alice", func(context.Context) error {
				inside++
				if inside > 1 {
					overlaps++
				}
				time.Sleep(2 * time.Millisecond)
				inside--
				return nil
			})
			if err != nil && !errors.Is(err, ErrNotAcquired) {
				t.Errorf("WithLock returned unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if overlaps != 0 {
		t.Errorf("Expected no holders to overlap, got %d overlaps", overlaps)
	}
}

func TestMemoryWithLockBusy(t *testing.T) {
	cfg := models.LockConfig{Lease: time.Second, AcquireAttempts: 2}
	manager := NewMemoryManager(cfg)
	ctx := context.Background()

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = manager.WithLock(ctx, "busy", func(context.Context) error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding
	defer close(done)

	err := manager.WithLock(ctx, "busy", func(context.Context) error { return nil })
	if !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("Expected ErrNotAcquired while lock held, got %v", err)
	}
}

func TestMemoryWithLockDistinctNamesDoNotContend(t *testing.T) {
	manager := NewMemoryManager(testLockConfig())
	ctx := context.Background()

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = manager.WithLock(ctx, "daily-limit:alice", func(context.Context) error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding
	defer close(done)

	if err := manager.WithLock(ctx, "daily-limit:bob", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Expected distinct lock name to be free, got %v", err)
	}
}

func TestMemoryWithLockReleasesOnError(t *testing.T) {
	manager := NewMemoryManager(testLockConfig())
	ctx := context.Background()

	wantErr := errors.New("business failure")
	if err := manager.WithLock(ctx, "x", func(context.Context) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Expected fn error to pass through, got %v", err)
	}

	// The failed run must not leave the lock held.
	if err := manager.WithLock(ctx, "x", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Expected lock to be free after error, got %v", err)
	}
}

func TestMemoryWithLockReleasesOnPanic(t *testing.T) {
	manager := NewMemoryManager(testLockConfig())
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic to propagate")
			}
		}()
		_ = manager.WithLock(ctx, "x", func(context.Context) error { panic("boom") })
	}()

	if err := manager.WithLock(ctx, "x", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Expected lock to be free after panic, got %v", err)
	}
}

func TestMemoryLeaseExpiryAndStaleRelease(t *testing.T) {
	cfg := models.LockConfig{Lease: 5 * time.Millisecond, AcquireAttempts: 1}
	manager := NewMemoryManager(cfg)

	token, ok := manager.tryAcquire("x")
	if !ok {
		t.Fatal("Expected first acquire to succeed")
	}

	time.Sleep(10 * time.Millisecond)

	// Lease expired; a successor takes over.
	successor, ok := manager.tryAcquire("x")
	if !ok {
		t.Fatal("Expected acquire to succeed after lease expiry")
	}

	// The stale holder's release must not free the successor's lease.
	manager.release("x", token)
	if _, ok := manager.tryAcquire("x"); ok {
		t.Fatal("Stale release freed a lease owned by another holder")
	}

	manager.release("x", successor)
	if _, ok := manager.tryAcquire("x"); !ok {
		t.Fatal("Expected acquire to succeed after owner released")
	}
}

func TestMemoryWithLockContextCancelled(t *testing.T) {
	manager := NewMemoryManager(models.LockConfig{Lease: time.Second, AcquireAttempts: 5})

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = manager.WithLock(context.Background(), "x", func(context.Context) error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := manager.WithLock(ctx, "x", func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled while waiting, got %v", err)
	}
}

func TestRetryDelayCapped(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 50 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 500 * time.Millisecond},
		{10, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := retryDelay(tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}
