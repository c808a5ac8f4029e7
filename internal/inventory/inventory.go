// Package inventory is the Inventory Module (IM): it owns the stock
// counter key and the two atomic scripts (INIT, DEC) that operate on it
// in isolation from the purchase ledger. DEC is not used on the hot path
// — the combined purchase script in package atomic supersedes it — but is
// kept for administrative use and tests, per the spec.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/flashsale/flashsale/internal/redisstore"
)

// StockKey is the single key the Inventory Module owns.
const StockKey = "flash-sale:stock"

// InitScript sets the counter to the given total iff it does not already
// exist. Idempotent across process restarts.
const InitScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('SET', KEYS[1], ARGV[1])
  return 1
end
return 0
`

// DecScript is the standalone decrement used outside the combined
// purchase path. It distinguishes absent (-1) from present-but-zero (0),
// a distinction the combined purchase script does not preserve.
const DecScript = `
local v = redis.call('GET', KEYS[1])
if v == false then
  return {0, -1}
end
local n = tonumber(v)
if n <= 0 then
  return {0, 0}
end
local remaining = redis.call('DECR', KEYS[1])
return {1, remaining}
`

// Module is the Inventory Module.
type Module struct {
	backend redisstore.Backend
}

// New constructs an inventory Module over the given Atomic Store.
func New(backend redisstore.Backend) *Module {
	return &Module{backend: backend}
}

// Initialize sets the stock counter to totalStock iff it does not already
// exist. Calling it twice has the same effect as calling it once.
func (m *Module) Initialize(ctx context.Context, totalStock int) error {
	_, err := m.backend.Eval(ctx, InitScript, []string{StockKey}, totalStock)
	return err
}

// GetStock reads the current counter, returning 0 if absent.
func (m *Module) GetStock(ctx context.Context) (int, error) {
	v, err := m.backend.Get(ctx, StockKey)
	if err != nil {
		if errors.Is(err, redisstore.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading stock: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing stock value %q: %w", v, err)
	}
	return n, nil
}

// DecrementStock atomically decrements the counter if it is present and
// greater than zero. Not used on the purchase hot path.
func (m *Module) DecrementStock(ctx context.Context) (success bool, remaining int, err error) {
	res, err := m.backend.Eval(ctx, DecScript, []string{StockKey})
	if err != nil {
		return false, 0, fmt.Errorf("executing DEC script: %w", err)
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return false, 0, fmt.Errorf("malformed DEC script result: %v", res)
	}
	ok1, _ := arr[0].(int64)
	rem, _ := arr[1].(int64)
	return ok1 == 1, int(rem), nil
}

// ResetStock unconditionally writes the counter to totalStock.
func (m *Module) ResetStock(ctx context.Context, totalStock int) error {
	return m.SetStock(ctx, totalStock)
}

// SetStock unconditionally writes the counter.
func (m *Module) SetStock(ctx context.Context, n int) error {
	return m.backend.Set(ctx, StockKey, n, 0)
}
