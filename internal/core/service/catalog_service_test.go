package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-saga/internal/core/domain"
)

func TestReserve_Success(t *testing.T) {
	f := newFixture()
	f.seedProduct("laptop", 2, "10")

	p, err := f.catalogSvc.Reserve(context.Background(), "laptop")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Quantity)
}

func TestReserve_OutOfStockLeavesQuantity(t *testing.T) {
	f := newFixture()
	f.seedProduct("laptop", 0, "10")

	_, err := f.catalogSvc.Reserve(context.Background(), "laptop")
	require.ErrorIs(t, err, domain.ErrOutOfStock)
	assert.Equal(t, MsgProductUnavailable, domain.MessageOf(err))

	p, _ := f.products.Get(context.Background(), "laptop")
	assert.Equal(t, 0, p.Quantity)
}

func TestReserve_UnknownProduct(t *testing.T) {
	f := newFixture()

	_, err := f.catalogSvc.Reserve(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, MsgInvalidProduct, domain.MessageOf(err))
}

func TestReserveRelease_RestoresQuantity(t *testing.T) {
	f := newFixture()
	f.seedProduct("laptop", 5, "10")

	_, err := f.catalogSvc.Reserve(context.Background(), "laptop")
	require.NoError(t, err)
	p, err := f.catalogSvc.Release(context.Background(), "laptop")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Quantity)
}

func TestRelease_WithoutReservation(t *testing.T) {
	f := newFixture()
	f.seedProduct("laptop", 5, "10")

	p, err := f.catalogSvc.Release(context.Background(), "laptop")
	require.NoError(t, err)
	assert.Equal(t, 6, p.Quantity)
}

func TestReserve_Concurrent(t *testing.T) {
	f := newFixture()
	f.seedProduct("item", 10, "1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved := 0
	for range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.catalogSvc.Reserve(context.Background(), "item"); err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, reserved)
	p, _ := f.products.Get(context.Background(), "item")
	assert.Zero(t, p.Quantity)
}

func TestPriceOf(t *testing.T) {
	f := newFixture()
	f.seedProduct("laptop", 1, "999.90")

	price, err := f.catalogSvc.PriceOf(context.Background(), "laptop")
	require.NoError(t, err)
	assert.Equal(t, "999.9", price.String())

	_, err = f.catalogSvc.PriceOf(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, MsgProductDoesNotExists, domain.MessageOf(err))
}

func TestValidateAvailability(t *testing.T) {
	f := newFixture()
	f.seedProduct("laptop", 1, "10")
	f.seedProduct("phone", 0, "10")

	_, err := f.catalogSvc.ValidateAvailability(context.Background(), "laptop")
	assert.NoError(t, err)

	_, err = f.catalogSvc.ValidateAvailability(context.Background(), "phone")
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	_, err = f.catalogSvc.ValidateAvailability(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p, _ := f.products.Get(context.Background(), "laptop")
	assert.Equal(t, 1, p.Quantity)
}

func TestRestock(t *testing.T) {
	f := newFixture()
	f.seedProduct("laptop", 1, "10")

	p, err := f.catalogSvc.Restock(context.Background(), "laptop", 4)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Quantity)

	_, err = f.catalogSvc.Restock(context.Background(), "laptop", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.catalogSvc.Restock(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHandleStockRelease(t *testing.T) {
	f := newFixture()
	f.seedProduct("laptop", 0, "10")

	require.NoError(t, f.catalogSvc.HandleStockRelease(context.Background(), domain.Event{OrderID: "o-1", ProductName: "laptop"}))
	p, _ := f.products.Get(context.Background(), "laptop")
	assert.Equal(t, 1, p.Quantity)

	// unknown products are dropped
	assert.NoError(t, f.catalogSvc.HandleStockRelease(context.Background(), domain.Event{OrderID: "o-2", ProductName: "ghost"}))
}
