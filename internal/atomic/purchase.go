// Package atomic defines the single indivisible script that makes the
// flash sale correct under concurrency: it combines the ledger lookup,
// the stock check, the stock decrement, and the ledger insert into one
// Lua script submitted to the Atomic Store, so that no two concurrent
// invocations can observe the same pre-decrement stock value and no two
// can insert the same user's ledger entry.
package atomic

import (
	"context"
	"fmt"
	"time"

	"github.com/flashsale/flashsale/internal/redisstore"
)

// Status codes returned by the purchase script. These are load-bearing:
// the Sale Coordinator's state machine switches on them directly.
const (
	StatusAlreadyPurchased = 0
	StatusSuccess          = 1
	StatusOutOfStock       = 2
)

// PurchaseScript executes, in one indivisible step:
//
//	existing := LOOKUP(ledgerKey, userId)
//	if existing is present: return (0, existing)
//	stock := READ_INT(stockKey)
//	if stock is absent or stock <= 0: return (2, 0)
//	remaining := ATOMIC_DECREMENT(stockKey)
//	INSERT(ledgerKey, userId, nowIso)
//	return (1, remaining)
//
// The decrement precedes the insert: if the store crashed between them,
// the counter is the authoritative low-water mark and the ledger may be
// missing at most totalStock entries, corrected by the next reset.
const PurchaseScript = `
local existing = redis.call('HGET', KEYS[2], ARGV[1])
if existing then
  return {0, existing}
end

local stockRaw = redis.call('GET', KEYS[1])
if stockRaw == false then
  return {2, 0}
end
local stock = tonumber(stockRaw)
if stock <= 0 then
  return {2, 0}
end

local remaining = redis.call('DECR', KEYS[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
return {1, remaining}
`

// Result is the parsed outcome of the purchase script.
type Result struct {
	Status      int
	Remaining   int
	PurchasedAt time.Time // commit instant for StatusSuccess, stored original for StatusAlreadyPurchased; zero otherwise
}

// Execute runs the combined purchase script against stockKey and
// ledgerKey for the given normalized userID, passing now as the commit
// timestamp candidate. It returns an error only for AS protocol
// violations or transport failure — never for already_purchased or
// out_of_stock, which are first-class results, not errors.
func Execute(ctx context.Context, backend redisstore.Backend, stockKey, ledgerKey, userID string, now time.Time) (Result, error) {
	nowStr := now.UTC().Format(time.RFC3339Nano)

	res, err := backend.Eval(ctx, PurchaseScript, []string{stockKey, ledgerKey}, userID, nowStr)
	if err != nil {
		return Result{}, fmt.Errorf("executing purchase script: %w", err)
	}

	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return Result{}, fmt.Errorf("malformed purchase script result: %v", res)
	}

	status, ok := arr[0].(int64)
	if !ok {
		return Result{}, fmt.Errorf("purchase script returned non-integer status: %v", arr[0])
	}

	switch status {
	case StatusAlreadyPurchased:
		existing, _ := arr[1].(string)
		ts, perr := time.Parse(time.RFC3339Nano, existing)
		if perr != nil {
			return Result{}, fmt.Errorf("parsing existing purchase timestamp %q: %w", existing, perr)
		}
		return Result{Status: StatusAlreadyPurchased, PurchasedAt: ts}, nil
	case StatusSuccess:
		remaining, _ := arr[1].(int64)
		return Result{Status: StatusSuccess, Remaining: int(remaining), PurchasedAt: now.UTC()}, nil
	case StatusOutOfStock:
		return Result{Status: StatusOutOfStock}, nil
	default:
		return Result{}, fmt.Errorf("unknown status code %d from purchase script: bug in script or consumer mismatch", status)
	}
}
