// Package lock implements a distributed in-flight guard on Redis so that
// several service replicas never sync the same key at once.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL    = 15 * time.Minute
	defaultPrefix = "aecr:sync:"
	tokenBytes    = 16
)

// ErrNotOwner means the lock expired or was taken by someone else before it
// was released or extended.
var ErrNotOwner = errors.New("lock not owned")

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Option configures a Redis guard.
type Option func(*Redis)

// WithTTL sets how long a lock survives a crashed holder. It must exceed
// the longest expected sync.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithPrefix sets the key namespace.
func WithPrefix(p string) Option {
	return func(r *Redis) {
		if p != "" {
			r.prefix = p
		}
	}
}

// Redis is a Guard backed by SET NX with a random ownership token per key.
// Tokens are remembered locally so that only this process can release its
// own locks.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedis creates a Redis guard.
func NewRedis(client redis.UniversalClient, opts ...Option) *Redis {
	r := &Redis{
		client: client,
		ttl:    defaultTTL,
		prefix: defaultPrefix,
		tokens: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TryAcquire implements inflight.Guard.
func (r *Redis) TryAcquire(ctx context.Context, key string) (bool, error) {
	token, err := newToken()
	if err != nil {
		return false, err
	}
	ok, err := r.client.SetNX(ctx, r.prefix+key, token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	r.mu.Lock()
	r.tokens[key] = token
	r.mu.Unlock()
	return true, nil
}

// Release implements inflight.Guard. It returns ErrNotOwner when the lock
// expired while held.
func (r *Redis) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	token, ok := r.tokens[key]
	delete(r.tokens, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	n, err := releaseScript.Run(ctx, r.client, []string{r.prefix + key}, token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("release lock %s: %w", key, ErrNotOwner)
	}
	return nil
}

// Extend pushes the expiry of a held lock out by ttl.
func (r *Redis) Extend(ctx context.Context, key string, ttl time.Duration) error {
	r.mu.Lock()
	token, ok := r.tokens[key]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("extend lock %s: %w", key, ErrNotOwner)
	}
	n, err := extendScript.Run(ctx, r.client, []string{r.prefix + key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("extend lock %s: %w", key, ErrNotOwner)
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
