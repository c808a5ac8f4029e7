// Package ledger is the Purchase Ledger (PL): it owns the mapping from
// normalized user id to the ISO-8601 UTC timestamp at which that user's
// purchase committed. A key, once present, is never overwritten.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flashsale/flashsale/internal/redisstore"
)

// Key is the single hash key the Purchase Ledger owns.
const Key = "flash-sale:purchases"

// RecordScript inserts ARGV[2] at field ARGV[1] iff the field is absent.
// Returns {1, value} on insert, {0, existing} if already present. This is
// the fallback "insert if absent" path; the hot path uses the combined
// purchase script in package atomic instead.
const RecordScript = `
local existing = redis.call('HGET', KEYS[1], ARGV[1])
if existing then
  return {0, existing}
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return {1, ARGV[2]}
`

// Ledger is the Purchase Ledger.
type Ledger struct {
	backend redisstore.Backend
}

// New constructs a Ledger over the given Atomic Store.
func New(backend redisstore.Backend) *Ledger {
	return &Ledger{backend: backend}
}

// HasPurchased looks up whether userID (already normalized by the caller)
// has a ledger entry, and its timestamp if so.
func (l *Ledger) HasPurchased(ctx context.Context, userID string) (bool, time.Time, error) {
	val, err := l.backend.HGet(ctx, Key, userID)
	if err != nil {
		if errors.Is(err, redisstore.ErrNotFound) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, fmt.Errorf("looking up ledger entry: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return true, time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", val, err)
	}
	return true, ts, nil
}

// RecordPurchase atomically inserts userID with the current UTC timestamp
// iff absent. Not used on the hot path (the combined purchase script
// supersedes it); retained for tests and as a fallback path.
func (l *Ledger) RecordPurchase(ctx context.Context, userID string, now time.Time) (success bool, purchasedAt time.Time, err error) {
	nowStr := now.UTC().Format(time.RFC3339Nano)
	res, err := l.backend.Eval(ctx, RecordScript, []string{Key}, userID, nowStr)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("executing record script: %w", err)
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return false, time.Time{}, fmt.Errorf("malformed record script result: %v", res)
	}
	ok1, _ := arr[0].(int64)
	storedRaw, _ := arr[1].(string)
	ts, perr := time.Parse(time.RFC3339Nano, storedRaw)
	if perr != nil {
		return false, time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", storedRaw, perr)
	}
	return ok1 == 1, ts, nil
}

// GetAllPurchases performs a full scan of the ledger. Admin/debug use only.
func (l *Ledger) GetAllPurchases(ctx context.Context) (map[string]string, error) {
	return l.backend.HGetAll(ctx, Key)
}

// GetPurchaseCount returns the number of distinct users who have purchased.
func (l *Ledger) GetPurchaseCount(ctx context.Context) (int, error) {
	return l.backend.HLen(ctx, Key)
}

// ClearPurchases empties the ledger.
func (l *Ledger) ClearPurchases(ctx context.Context) error {
	return l.backend.Del(ctx, Key)
}
