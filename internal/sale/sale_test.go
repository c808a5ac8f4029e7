package sale_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashsale/flashsale/internal/fakestore"
	"github.com/flashsale/flashsale/internal/models"
	"github.com/flashsale/flashsale/internal/sale"
)

func newCoordinator(t *testing.T, start, end time.Time, totalStock int, now sale.Clock) *sale.Coordinator {
	t.Helper()
	c := sale.New(sale.Config{
		StartTime:    start,
		EndTime:      end,
		TotalStock:   totalStock,
		ProductName:  "Widget",
		ProductPrice: "9.99",
	}, fakestore.New(), now)
	require.NoError(t, c.Initialize(context.Background()))
	return c
}

func TestStateBoundaries(t *testing.T) {
	start := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	c := newCoordinator(t, start, end, 1, nil)

	assert.Equal(t, models.SaleStateUpcoming, c.State(start.Add(-time.Nanosecond)))
	assert.Equal(t, models.SaleStateActive, c.State(start))
	assert.Equal(t, models.SaleStateActive, c.State(end))
	assert.Equal(t, models.SaleStateEnded, c.State(end.Add(time.Nanosecond)))
}

func TestAttemptPurchaseBeforeWindow(t *testing.T) {
	start := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	clockVal := start.Add(-time.Minute)
	c := newCoordinator(t, start, end, 5, func() time.Time { return clockVal })

	result, err := c.AttemptPurchase(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.ReasonSaleNotActive, result.Reason)
}

func TestAttemptPurchaseAfterWindow(t *testing.T) {
	start := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	clockVal := end.Add(time.Minute)
	c := newCoordinator(t, start, end, 5, func() time.Time { return clockVal })

	result, err := c.AttemptPurchase(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.ReasonSaleNotActive, result.Reason)
}

func TestAttemptPurchaseInvalidUserID(t *testing.T) {
	start := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	clockVal := start.Add(time.Minute)
	c := newCoordinator(t, start, end, 5, func() time.Time { return clockVal })

	for _, raw := range []string{"", "   ", "\t\n"} {
		result, err := c.AttemptPurchase(context.Background(), raw)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, models.ReasonInvalidUserID, result.Reason)
	}
}

func TestAttemptPurchaseNormalizesUserID(t *testing.T) {
	start := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	clockVal := start.Add(time.Minute)
	c := newCoordinator(t, start, end, 5, func() time.Time { return clockVal })

	ctx := context.Background()
	result, err := c.AttemptPurchase(ctx, "  Alice@Example.com  ")
	require.NoError(t, err)
	require.True(t, result.Success)

	status, err := c.GetUserStatus(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.True(t, status.HasPurchased, "user id lookup must be case/whitespace insensitive")
}

func TestAttemptPurchaseOutOfStockAndAlreadyPurchased(t *testing.T) {
	start := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	clockVal := start.Add(time.Minute)
	c := newCoordinator(t, start, end, 1, func() time.Time { return clockVal })
	ctx := context.Background()

	result, err := c.AttemptPurchase(ctx, "alice")
	require.NoError(t, err)
	require.True(t, result.Success)

	result, err = c.AttemptPurchase(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.ReasonOutOfStock, result.Reason)

	result, err = c.AttemptPurchase(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.ReasonAlreadyPurchased, result.Reason)
}

func TestResetRestoresStockAndClearsLedger(t *testing.T) {
	start := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	clockVal := start.Add(time.Minute)
	c := newCoordinator(t, start, end, 1, func() time.Time { return clockVal })
	ctx := context.Background()

	_, err := c.AttemptPurchase(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, c.Reset(ctx))

	status, err := c.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.RemainingStock)

	userStatus, err := c.GetUserStatus(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, userStatus.HasPurchased)
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	start := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	clockVal := start.Add(time.Minute)
	const totalStock = 5
	const attempts = 25
	c := newCoordinator(t, start, end, totalStock, func() time.Time { return clockVal })
	ctx := context.Background()

	var wg sync.WaitGroup
	successes := make([]bool, attempts)
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := "user-" + string(rune('a'+i))
			result, err := c.AttemptPurchase(ctx, userID)
			successes[i] = result.Success
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "attempt %d", i)
	}

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	assert.Equal(t, totalStock, count)

	status, err := c.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.RemainingStock)
}
