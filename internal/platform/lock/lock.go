// Package lock provides a named advisory lock used to serialise
// allocation-affecting operations per schedulable resource. The lock is a
// belt-and-suspenders guard on top of transactional row locks, keyed by a
// string such as "booking:resource:<id>".
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock cannot be obtained before the
// context is cancelled.
var ErrNotAcquired = errors.New("advisory lock not acquired")

// Provider acquires a named exclusive lock, runs fn while holding it and
// releases it afterwards, whether fn succeeds or fails.
type Provider interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// --- Redis implementation ---

type redisProvider struct {
	client     *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
}

// NewRedisProvider returns a Provider that implements the lock as a Redis
// SET NX key with a token value. Acquisition blocks, polling until the key is
// free or ctx is done. The ttl bounds how long a crashed holder can wedge the
// lock.
func NewRedisProvider(client *redis.Client, ttl time.Duration) Provider {
	return &redisProvider{client: client, ttl: ttl, retryDelay: 50 * time.Millisecond}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (p *redisProvider) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	for {
		ok, err := p.client.SetNX(ctx, key, token, p.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case <-time.After(p.retryDelay):
		}
	}

	defer func() {
		// Compare-and-delete so an expired lock taken over by another holder
		// is never released by us.
		_, _ = unlockScript.Run(context.WithoutCancel(ctx), p.client, []string{key}, token).Result()
	}()

	return fn(ctx)
}

// --- In-process implementation ---

type localProvider struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocalProvider returns a Provider backed by an in-process mutex table.
// Suitable for single-instance deployments and tests; entries are removed
// once the last waiter releases them.
func NewLocalProvider() Provider {
	return &localProvider{locks: make(map[string]*lockEntry)}
}

func (p *localProvider) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	p.mu.Lock()
	entry, ok := p.locks[key]
	if !ok {
		entry = &lockEntry{}
		p.locks[key] = entry
	}
	entry.refs++
	p.mu.Unlock()

	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		p.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}
	return fn(ctx)
}

// ResourceKey formats the canonical lock key for a schedulable resource.
func ResourceKey(resourceID uuid.UUID) string {
	return fmt.Sprintf("booking:resource:%s", resourceID)
}
