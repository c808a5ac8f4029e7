package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashsale/flashsale/internal/fakestore"
	"github.com/flashsale/flashsale/internal/inventory"
)

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := fakestore.New()
	m := inventory.New(backend)

	require.NoError(t, m.Initialize(ctx, 10))
	stock, err := m.GetStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stock)

	require.NoError(t, m.Initialize(ctx, 999))
	stock, err = m.GetStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stock, "second Initialize must not overwrite the counter")
}

func TestGetStockAbsentIsZero(t *testing.T) {
	ctx := context.Background()
	m := inventory.New(fakestore.New())

	stock, err := m.GetStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}

func TestDecrementStockDistinguishesAbsentFromZero(t *testing.T) {
	ctx := context.Background()
	backend := fakestore.New()
	m := inventory.New(backend)

	ok, remaining, err := m.DecrementStock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, -1, remaining)

	require.NoError(t, m.Initialize(ctx, 1))

	ok, remaining, err = m.DecrementStock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)

	ok, remaining, err = m.DecrementStock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, remaining)
}

func TestSetAndResetStock(t *testing.T) {
	ctx := context.Background()
	backend := fakestore.New()
	m := inventory.New(backend)

	require.NoError(t, m.SetStock(ctx, 7))
	stock, err := m.GetStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, stock)

	require.NoError(t, m.ResetStock(ctx, 3))
	stock, err = m.GetStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stock)
}
