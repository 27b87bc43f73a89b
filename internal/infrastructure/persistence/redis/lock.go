package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

type lockStore interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ExtendIfValue(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}

// Lock is the single-writer ingestion lock. Each holder writes a random
// token with a lease; release deletes the key only if the token matches,
// so an expired holder cannot free someone else's lock.
//
// While a run holds the lock its lease is renewed every third of the TTL,
// so a batch may outlast the TTL. The TTL only bounds how long a crashed
// holder keeps others out.
type Lock struct {
	store  lockStore
	prefix string
	ttl    time.Duration
}

// NewLock creates a Lock whose leases last ttl.
func NewLock(c *Cache, ttl time.Duration) *Lock {
	return &Lock{store: c, prefix: c.Key("lock") + ":", ttl: ttl}
}

// Acquire takes the lock for resource. It fails fast with shared.ErrLocked
// when another run holds it.
func (l *Lock) Acquire(ctx context.Context, resource string) (func(context.Context) error, error) {
	key := l.prefix + resource
	token := uuid.NewString()

	ok, err := l.store.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", resource, err)
	}
	if !ok {
		return nil, shared.NewDomainError("lock", "Acquire", shared.ErrLocked,
			fmt.Sprintf("%s is held by another run", resource))
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	if l.ttl > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.renew(context.WithoutCancel(ctx), key, token, stop)
		}()
	}

	var once sync.Once
	release := func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
		if _, err := l.store.DeleteIfValue(ctx, key, token); err != nil {
			return fmt.Errorf("release lock %s: %w", resource, err)
		}
		return nil
	}
	return release, nil
}

// renew extends the lease until stop is closed or the token is gone.
func (l *Lock) renew(ctx context.Context, key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(max(l.ttl/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			held, err := l.store.ExtendIfValue(ctx, key, token, l.ttl)
			if err != nil {
				continue
			}
			if !held {
				return
			}
		}
	}
}
