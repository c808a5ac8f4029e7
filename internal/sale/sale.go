// Package sale implements the Sale Coordinator (SC): it derives the
// sale-window state from the wall clock, gates purchase attempts against
// that state, and dispatches the atomic purchase script to the Atomic
// Store. SC holds no mutable in-process state of its own — remaining
// stock and the purchase ledger live in Redis; the window bounds are
// immutable config captured at construction.
package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/flashsale/flashsale/internal/atomic"
	"github.com/flashsale/flashsale/internal/inventory"
	"github.com/flashsale/flashsale/internal/ledger"
	"github.com/flashsale/flashsale/internal/models"
	"github.com/flashsale/flashsale/internal/redisstore"
	"github.com/flashsale/flashsale/internal/userid"
)

// Config is the immutable sale-window and catalog configuration the
// coordinator was constructed with. It is never reread; Reset does not
// reload it.
type Config struct {
	StartTime    time.Time
	EndTime      time.Time
	TotalStock   int
	ProductName  string
	ProductPrice string
}

// Clock abstracts time.Now so tests can drive the window state machine
// deterministically without sleeping.
type Clock func() time.Time

// Coordinator is the Sale Coordinator. Construct one per process and
// thread it to the HTTP handlers by reference; it holds no ambient
// global state.
type Coordinator struct {
	cfg       Config
	backend   redisstore.Backend
	inventory *inventory.Module
	ledger    *ledger.Ledger
	now       Clock
}

// New constructs a Coordinator. now defaults to time.Now when nil.
func New(cfg Config, backend redisstore.Backend, now Clock) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		cfg:       cfg,
		backend:   backend,
		inventory: inventory.New(backend),
		ledger:    ledger.New(backend),
		now:       now,
	}
}

// State returns the sale-window state derived from the wall clock. The
// window is a closed interval [StartTime, EndTime]: at exactly StartTime
// the sale is active, and it remains active through exactly EndTime.
func (c *Coordinator) State(at time.Time) models.SaleState {
	if at.Before(c.cfg.StartTime) {
		return models.SaleStateUpcoming
	}
	if at.After(c.cfg.EndTime) {
		return models.SaleStateEnded
	}
	return models.SaleStateActive
}

// GetStatus reads the stock counter once and reports a point-in-time
// snapshot. It never fails absent an Atomic Store outage, per spec: it
// does not attempt to linearize remainingStock against the derived
// state, which is recomputed independently.
func (c *Coordinator) GetStatus(ctx context.Context) (models.SaleStatusResponse, error) {
	now := c.now().UTC()
	remaining, err := c.inventory.GetStock(ctx)
	if err != nil {
		return models.SaleStatusResponse{}, fmt.Errorf("reading stock: %w", err)
	}
	return models.SaleStatusResponse{
		Status:         c.State(now),
		StartsAt:       c.cfg.StartTime,
		EndsAt:         c.cfg.EndTime,
		RemainingStock: remaining,
		TotalStock:     c.cfg.TotalStock,
		ProductName:    c.cfg.ProductName,
		ProductPrice:   c.cfg.ProductPrice,
		ServerTime:     now,
	}, nil
}

// AttemptPurchase runs the purchase state machine for one invocation:
// validate the raw user id, gate on the sale window, then dispatch the
// combined atomic script. The window check happens before the atomic
// commit and is not itself part of the atomic operation — a purchase
// that interleaves with window expiry may still commit, which is
// acceptable since the window is a soft gate measured in seconds.
func (c *Coordinator) AttemptPurchase(ctx context.Context, rawUserID string) (models.PurchaseResult, error) {
	id := userid.Normalize(rawUserID)
	if id == "" {
		return models.PurchaseResult{
			Success: false,
			Reason:  models.ReasonInvalidUserID,
			Message: "userId must not be empty",
		}, nil
	}

	now := c.now().UTC()
	switch c.State(now) {
	case models.SaleStateUpcoming:
		return models.PurchaseResult{
			Success: false,
			Reason:  models.ReasonSaleNotActive,
			Message: "the sale has not started yet",
		}, nil
	case models.SaleStateEnded:
		return models.PurchaseResult{
			Success: false,
			Reason:  models.ReasonSaleNotActive,
			Message: "the sale has ended",
		}, nil
	}

	res, err := atomic.Execute(ctx, c.backend, inventory.StockKey, ledger.Key, id, now)
	if err != nil {
		return models.PurchaseResult{}, fmt.Errorf("commit: %w", err)
	}

	switch res.Status {
	case atomic.StatusAlreadyPurchased:
		return models.PurchaseResult{
			Success:     false,
			Reason:      models.ReasonAlreadyPurchased,
			Message:     "you have already purchased this item",
			PurchasedAt: res.PurchasedAt,
		}, nil
	case atomic.StatusOutOfStock:
		return models.PurchaseResult{
			Success: false,
			Reason:  models.ReasonOutOfStock,
			Message: "this item is sold out",
		}, nil
	case atomic.StatusSuccess:
		return models.PurchaseResult{
			Success:     true,
			Message:     "purchase successful",
			PurchasedAt: res.PurchasedAt,
		}, nil
	default:
		// atomic.Execute already rejects unknown codes, so this is
		// unreachable except via a future mismatch between this
		// switch and atomic.Result's contract.
		return models.PurchaseResult{}, fmt.Errorf("unhandled atomic purchase status %d", res.Status)
	}
}

// GetUserStatus normalizes rawUserID and reports whether it has a ledger
// entry.
func (c *Coordinator) GetUserStatus(ctx context.Context, rawUserID string) (models.UserStatusResponse, error) {
	id := userid.Normalize(rawUserID)
	has, ts, err := c.ledger.HasPurchased(ctx, id)
	if err != nil {
		return models.UserStatusResponse{}, fmt.Errorf("looking up purchase: %w", err)
	}
	if !has {
		return models.UserStatusResponse{HasPurchased: false}, nil
	}
	return models.UserStatusResponse{HasPurchased: true, PurchasedAt: &ts}, nil
}

// Initialize idempotently sets the stock counter to TotalStock iff
// absent. Intended as a startup step.
func (c *Coordinator) Initialize(ctx context.Context) error {
	return c.inventory.Initialize(ctx, c.cfg.TotalStock)
}

// Reset unconditionally writes the counter to TotalStock and empties the
// ledger. Test-only; not exposed on the production HTTP surface.
func (c *Coordinator) Reset(ctx context.Context) error {
	if err := c.inventory.SetStock(ctx, c.cfg.TotalStock); err != nil {
		return fmt.Errorf("resetting stock: %w", err)
	}
	if err := c.ledger.ClearPurchases(ctx); err != nil {
		return fmt.Errorf("clearing ledger: %w", err)
	}
	return nil
}
