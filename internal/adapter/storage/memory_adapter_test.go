package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-saga/internal/core/domain"
)

func TestMemoryProduct_ReserveNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProductRepository()
	require.NoError(t, repo.Save(ctx, domain.Product{Name: "pen", Quantity: 5, Price: decimal.NewFromInt(2)}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved := 0
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Reserve(ctx, "pen"); err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, reserved)
	p, err := repo.Get(ctx, "pen")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Quantity)

	_, err = repo.Reserve(ctx, "pen")
	assert.ErrorIs(t, err, domain.ErrOutOfStock)
	_, err = repo.Reserve(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.Release(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryAccount_RemovesFirstMatchOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()
	require.NoError(t, repo.Save(ctx, domain.Account{UserName: "alice", Products: []string{"pen", "ink", "pen"}}))

	require.NoError(t, repo.RemoveProduct(ctx, "alice", "pen"))
	acc, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"ink", "pen"}, acc.Products)

	// callers cannot mutate stored state through the returned slice
	acc.Products[0] = "changed"
	again, _ := repo.Get(ctx, "alice")
	assert.Equal(t, "ink", again.Products[0])

	assert.ErrorIs(t, repo.RemoveProduct(ctx, "alice", "stapler"), domain.ErrNotFound)
	assert.ErrorIs(t, repo.AppendProduct(ctx, "bob", "pen"), domain.ErrNotFound)
}

func TestMemoryOrder_KeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOrderRepository()
	now := time.Now()

	for _, id := range []string{"o3", "o1", "o2"} {
		require.NoError(t, repo.Create(ctx, domain.NewOrder(id, "alice", "pen", now)))
	}
	deleted, err := repo.Delete(ctx, "o1", domain.OrderStatusWaitingToPlace)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repo.Delete(ctx, "o1", domain.OrderStatusWaitingToPlace)
	require.NoError(t, err)
	assert.False(t, deleted)

	found, err := repo.FindByUserAndProduct(ctx, "alice", "pen")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "o3", found[0].ID)
	assert.Equal(t, "o2", found[1].ID)

	_, err = repo.UpdateStatus(ctx, "o1", domain.OrderStatusWaitingToPlace, domain.OrderStatusPlaced, now)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryOrder_ScopedWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOrderRepository()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, domain.NewOrder("o1", "alice", "pen", now)))

	paid, err := repo.MarkPaid(ctx, "o1", now)
	require.NoError(t, err)
	assert.True(t, paid)

	// a status write based on a stale read keeps the payment
	ok, err := repo.UpdateStatus(ctx, "o1", domain.OrderStatusWaitingToPlace, domain.OrderStatusPlaced, now)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPlaced, got.Status)
	assert.True(t, got.IsPaid())

	ok, err = repo.UpdateStatus(ctx, "o1", domain.OrderStatusWaitingToPlace, domain.OrderStatusPlaced, now)
	require.NoError(t, err)
	assert.False(t, ok, "status moved on, the compare-and-set must fail")

	paid, err = repo.MarkPaid(ctx, "o1", now)
	require.NoError(t, err)
	assert.False(t, paid)

	deleted, err := repo.Delete(ctx, "o1", domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.False(t, deleted)
	_, err = repo.Get(ctx, "o1")
	assert.NoError(t, err)
}

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore()

	seen, err := store.MarkSeen(ctx, "k")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = store.MarkSeen(ctx, "k")
	require.NoError(t, err)
	assert.True(t, seen)
}
