// Package fakestore is an in-memory stand-in for the Atomic Store, used
// only by tests. It implements redisstore.Backend by reproducing the
// exact semantics of each exported Lua script constant (inventory.InitScript,
// inventory.DecScript, ledger.RecordScript, atomic.PurchaseScript) as Go
// code, dispatching Eval by comparing the script text against those
// constants. It is never imported by non-test code.
package fakestore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/flashsale/flashsale/internal/atomic"
	"github.com/flashsale/flashsale/internal/inventory"
	"github.com/flashsale/flashsale/internal/ledger"
	"github.com/flashsale/flashsale/internal/redisstore"
)

// Fake is an in-memory Backend. Construct it with New: the zero value has
// nil maps, and writing through it panics.
type Fake struct {
	mu      sync.Mutex
	strs    map[string]string
	exists  map[string]bool
	hashes  map[string]map[string]string
	EvalErr error // when set, Eval returns this error unconditionally
}

// New constructs an empty Fake.
func New() *Fake {
	return &Fake{
		strs:   make(map[string]string),
		exists: make(map[string]bool),
		hashes: make(map[string]map[string]string),
	}
}

var _ redisstore.Backend = (*Fake)(nil)

// Eval dispatches on script identity, matching the real scripts'
// semantics exactly: INIT (set-if-absent), DEC (absent-vs-zero aware
// decrement), RECORD (hash-insert-if-absent), and the combined PURCHASE
// script (ledger check, stock check, decrement, insert — one step).
func (f *Fake) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.EvalErr != nil {
		return nil, f.EvalErr
	}

	switch script {
	case inventory.InitScript:
		key := keys[0]
		if f.exists[key] {
			return int64(0), nil
		}
		f.strs[key] = fmt.Sprintf("%v", args[0])
		f.exists[key] = true
		return int64(1), nil

	case inventory.DecScript:
		key := keys[0]
		if !f.exists[key] {
			return []interface{}{int64(0), int64(-1)}, nil
		}
		n, err := strconv.Atoi(f.strs[key])
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return []interface{}{int64(0), int64(0)}, nil
		}
		n--
		f.strs[key] = strconv.Itoa(n)
		return []interface{}{int64(1), int64(n)}, nil

	case ledger.RecordScript:
		key := keys[0]
		field := args[0].(string)
		value := args[1].(string)
		h := f.hash(key)
		if existing, ok := h[field]; ok {
			return []interface{}{int64(0), existing}, nil
		}
		h[field] = value
		return []interface{}{int64(1), value}, nil

	case atomic.PurchaseScript:
		stockKey, ledgerKey := keys[0], keys[1]
		userID := args[0].(string)
		nowStr := args[1].(string)

		h := f.hash(ledgerKey)
		if existing, ok := h[userID]; ok {
			return []interface{}{int64(0), existing}, nil
		}

		if !f.exists[stockKey] {
			return []interface{}{int64(2), int64(0)}, nil
		}
		stock, err := strconv.Atoi(f.strs[stockKey])
		if err != nil {
			return nil, err
		}
		if stock <= 0 {
			return []interface{}{int64(2), int64(0)}, nil
		}
		stock--
		f.strs[stockKey] = strconv.Itoa(stock)
		h[userID] = nowStr
		return []interface{}{int64(1), int64(stock)}, nil

	default:
		return nil, fmt.Errorf("fakestore: unrecognized script")
	}
}

func (f *Fake) hash(key string) map[string]string {
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	return h
}

// Get reads a plain string key, returning redisstore.ErrNotFound if absent.
func (f *Fake) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists[key] {
		return "", redisstore.ErrNotFound
	}
	return f.strs[key], nil
}

// Set unconditionally writes a plain string key. ttl is ignored: no test
// in this repo depends on expiry.
func (f *Fake) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strs[key] = fmt.Sprintf("%v", value)
	f.exists[key] = true
	return nil
}

// Del deletes a plain string key or a hash key, whichever is present.
func (f *Fake) Del(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.strs, key)
	delete(f.exists, key)
	delete(f.hashes, key)
	return nil
}

// HGet reads a hash field, returning redisstore.ErrNotFound if absent.
func (f *Fake) HGet(ctx context.Context, key, field string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		return "", redisstore.ErrNotFound
	}
	v, ok := h[field]
	if !ok {
		return "", redisstore.ErrNotFound
	}
	return v, nil
}

// HGetAll returns a copy of every field in the hash.
func (f *Fake) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

// HLen returns the number of fields in the hash.
func (f *Fake) HLen(ctx context.Context, key string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hashes[key]), nil
}
