package sale_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anishathalye/porcupine"

	"github.com/flashsale/flashsale/internal/fakestore"
	"github.com/flashsale/flashsale/internal/sale"
)

// purchaseInput/purchaseOutput model one AttemptPurchase call for porcupine:
// the combined purchase script must behave as if stock decrements and
// ledger inserts happen as a single atomic step, so a history of
// concurrent attempts against a fixed total stock must be linearizable
// against a sequential model that tracks remaining stock and the set of
// users who already purchased.
type purchaseInput struct {
	UserID string
}

type purchaseOutput struct {
	Success bool
	Reason  string
}

type saleState struct {
	remaining int
	purchased map[string]bool
}

func purchaseModel(totalStock int) porcupine.Model {
	return porcupine.Model{
		Init: func() interface{} {
			return saleState{remaining: totalStock, purchased: map[string]bool{}}
		},
		Step: func(state, input, output interface{}) (bool, interface{}) {
			st := state.(saleState)
			in := input.(purchaseInput)
			out := output.(purchaseOutput)

			if st.purchased[in.UserID] {
				return !out.Success && out.Reason == "already_purchased", st
			}
			if st.remaining <= 0 {
				return !out.Success && out.Reason == "out_of_stock", st
			}
			if !out.Success {
				// A concurrent racer could have consumed the last unit or
				// the user's own slot first; only out_of_stock is a valid
				// failure when the sequential model still has stock and
				// no prior purchase recorded for this user.
				return out.Reason == "out_of_stock", st
			}
			next := saleState{remaining: st.remaining - 1, purchased: map[string]bool{}}
			for k, v := range st.purchased {
				next.purchased[k] = v
			}
			next.purchased[in.UserID] = true
			return true, next
		},
		// saleState holds a map, so the default == comparison would panic.
		Equal: func(a, b interface{}) bool {
			sa, sb := a.(saleState), b.(saleState)
			if sa.remaining != sb.remaining || len(sa.purchased) != len(sb.purchased) {
				return false
			}
			for k := range sa.purchased {
				if !sb.purchased[k] {
					return false
				}
			}
			return true
		},
	}
}

// TestAttemptPurchaseIsLinearizable drives many concurrent AttemptPurchase
// calls against a fixed total stock and checks that the recorded call/return
// history admits a linearization — i.e. that the combined purchase script
// never lets two concurrent attempts both observe the same pre-decrement
// stock value.
func TestAttemptPurchaseIsLinearizable(t *testing.T) {
	start := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	clockVal := start.Add(time.Minute)
	const totalStock = 8
	const clients = 24

	c := sale.New(sale.Config{StartTime: start, EndTime: end, TotalStock: totalStock},
		fakestore.New(), func() time.Time { return clockVal })
	ctx := context.Background()
	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var mu sync.Mutex
	var ops []porcupine.Operation
	var wg sync.WaitGroup
	var clock int64
	tick := func() int64 {
		mu.Lock()
		defer mu.Unlock()
		clock++
		return clock
	}

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := "user-" + string(rune('a'+(i%12)))
			callTime := tick()
			result, err := c.AttemptPurchase(ctx, userID)
			if err != nil {
				t.Errorf("AttemptPurchase: %v", err)
				return
			}
			returnTime := tick()

			mu.Lock()
			ops = append(ops, porcupine.Operation{
				ClientId: i,
				Input:    purchaseInput{UserID: userID},
				Call:     callTime,
				Output:   purchaseOutput{Success: result.Success, Reason: string(result.Reason)},
				Return:   returnTime,
			})
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	res := porcupine.CheckOperationsTimeout(purchaseModel(totalStock), ops, 5*time.Second)
	if res != porcupine.Ok {
		t.Fatalf("purchase history is not linearizable: %v", res)
	}
}
