// Package inflight guards a key so that at most one holder works on it at a
// time. Callers that lose the race are rejected, not queued.
package inflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCapacity means a bounded guard already holds its maximum number of keys.
var ErrCapacity = errors.New("in-flight guard at capacity")

// Guard tracks held keys.
type Guard interface {
	// TryAcquire atomically takes key if nobody holds it. It returns false,
	// without error, when key is already held.
	TryAcquire(ctx context.Context, key string) (bool, error)
	// Release frees key. Releasing a key that is not held is a no-op.
	Release(ctx context.Context, key string) error
}

// Option applies a configuration option to the local guard.
type Option func(*Local)

// WithMaxKeys bounds the number of keys held at once. If maxKeys <= 0 the
// guard is unbounded.
func WithMaxKeys(maxKeys int) Option {
	return func(g *Local) {
		g.maxKeys = maxKeys
	}
}

// Local implements Guard with a mutex-protected set.
type Local struct {
	mu      sync.Mutex
	held    map[string]struct{}
	maxKeys int
	size    atomic.Int64
}

// NewLocal creates an in-process Guard.
func NewLocal(opts ...Option) *Local {
	g := &Local{held: make(map[string]struct{})}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TryAcquire implements Guard.
func (g *Local) TryAcquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.held[key]; exists {
		return false, nil
	}
	if g.maxKeys > 0 && len(g.held) >= g.maxKeys {
		return false, ErrCapacity
	}
	g.held[key] = struct{}{}
	g.size.Add(1)
	return true, nil
}

// Release implements Guard.
func (g *Local) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.held[key]; exists {
		delete(g.held, key)
		g.size.Add(-1)
	}
	return nil
}

// Held reports whether key is currently held.
func (g *Local) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[key]
	return ok
}

// Size returns the number of held keys.
func (g *Local) Size() int64 {
	return g.size.Load()
}

// Chain acquires every guard in order and releases in reverse. It lets a
// process-local guard front a distributed one so that local contention never
// reaches the network.
type Chain []Guard

// TryAcquire implements Guard. On failure, guards already taken are released.
func (c Chain) TryAcquire(ctx context.Context, key string) (bool, error) {
	for i, g := range c {
		ok, err := g.TryAcquire(ctx, key)
		if err != nil || !ok {
			for j := i - 1; j >= 0; j-- {
				_ = c[j].Release(ctx, key)
			}
			return false, err
		}
	}
	return true, nil
}

// Release implements Guard.
func (c Chain) Release(ctx context.Context, key string) error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Release(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
