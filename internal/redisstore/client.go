// Package redisstore is the thin adapter over the Atomic Store (AS). It
// owns nothing but the connection and a bounded-retry wrapper around
// idempotent reads; the indivisible multi-step operations themselves
// (INIT, DEC, the combined purchase script) are defined by their owning
// packages (inventory, ledger, atomic) and submitted through Store.Eval,
// which never retries.
package redisstore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	maxRetries  = 3
	backoffBase = 200 * time.Millisecond
	backoffCap  = 2 * time.Second
)

// ErrNotFound is returned by Get/HGet when the key or field is absent,
// translated from redis.Nil so that callers (and test fakes standing in
// for Backend) don't need to depend on go-redis directly.
var ErrNotFound = errors.New("redisstore: not found")

// Backend is the narrow surface the Inventory Module, Purchase Ledger,
// and combined purchase script need from the Atomic Store. Depending on
// this interface rather than the concrete *Store lets tests substitute an
// in-memory fake that reproduces the same script semantics without a
// running Redis.
type Backend interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HLen(ctx context.Context, key string) (int, error)
}

// Store is the shared Redis client used by every component that talks to
// the Atomic Store. It is safe for concurrent use: go-redis pools
// connections internally, and Store adds no locking of its own.
type Store struct {
	Client *redis.Client
}

// New wraps an already-connected *redis.Client. The connection is expected
// to have been opened and pinged during startup (see config.InitAppContext).
func New(client *redis.Client) *Store {
	return &Store{Client: client}
}

// Eval runs a Lua script and returns on the first error, with no retry of
// any kind. A script's result is indeterminate the moment the request
// leaves the process: a connection-refused or timeout error gives no
// signal about whether the script ran on the server before the error
// surfaced, so resubmitting it could double-decrement stock or otherwise
// replay a mutation that already committed. This is the AS transient
// failure path described in the spec: the caller (atomic.Execute) reports
// the error upward rather than retrying it itself.
func (s *Store) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return s.Client.Eval(ctx, script, keys, args...).Result()
}

// Get reads a string key with bounded retry, translating redis.Nil to
// ErrNotFound. Safe to retry: a read has no side effect to double-apply.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := withRetry(ctx, func() (string, error) {
		return s.Client.Get(ctx, key).Result()
	})
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

// Set unconditionally writes key, with optional ttl (0 means no expiry).
// Not retried: repeated writes of the same fixed value are harmless in
// practice, but Set is also used to seed state where a silent resend
// after a server-side success would be needless — callers see the error
// and can decide to retry at a higher level if appropriate.
func (s *Store) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return s.Client.Set(ctx, key, value, ttl).Err()
}

// Del deletes a key. Idempotent — deleting an already-absent key is a
// no-op — but not on any hot path, so left unretried for simplicity.
func (s *Store) Del(ctx context.Context, key string) error {
	return s.Client.Del(ctx, key).Err()
}

// HGet reads a hash field with bounded retry, translating redis.Nil to
// ErrNotFound.
func (s *Store) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := withRetry(ctx, func() (string, error) {
		return s.Client.HGet(ctx, key, field).Result()
	})
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

// HGetAll reads every field in the hash, with bounded retry.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return withRetry(ctx, func() (map[string]string, error) {
		return s.Client.HGetAll(ctx, key).Result()
	})
}

// HLen returns the number of fields in the hash, with bounded retry.
func (s *Store) HLen(ctx context.Context, key string) (int, error) {
	n, err := withRetry(ctx, func() (int64, error) {
		return s.Client.HLen(ctx, key).Result()
	})
	return int(n), err
}

// withRetry runs fn with bounded retry and exponential backoff — up to 3
// attempts, 200ms base doubling per attempt, capped at 2s — and is used
// only for read-only calls, where resubmitting after a transient
// transport error cannot change the outcome. Eval (and any future
// mutating call) must not be wrapped in this: see Store.Eval's comment.
func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero, result T
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffBase * time.Duration(1<<(attempt-1))
			if backoff > backoffCap {
				backoff = backoffCap
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, lastErr = fn()
		if lastErr == nil || !isTransient(lastErr) {
			return result, lastErr
		}
		log.Printf("redisstore: transient error on attempt %d/%d: %v", attempt+1, maxRetries, lastErr)
	}
	return zero, lastErr
}

// isTransient reports whether err is worth retrying. Every error other
// than redis.Nil is treated as transient; redis.Nil never is: it's a
// well-defined "key absent" result, not a connection problem.
func isTransient(err error) bool {
	return !errors.Is(err, redis.Nil)
}
