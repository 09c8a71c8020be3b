package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/adapter/storage"
	"github.com/rl1809/order-saga/internal/core/domain"
)

type failingStore struct{}

func (failingStore) MarkSeen(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestDeduplicate_SkipsRedelivery(t *testing.T) {
	calls := 0
	h := Deduplicate(storage.NewMemoryIdempotencyStore(), domain.ChannelStockRelease, zap.NewNop(),
		func(context.Context, domain.Event) error {
			calls++
			return nil
		})

	ev := domain.Event{ID: "e-1", ProductName: "pen"}
	require.NoError(t, h(context.Background(), ev))
	require.NoError(t, h(context.Background(), ev))
	require.NoError(t, h(context.Background(), domain.Event{ID: "e-2"}))

	assert.Equal(t, 2, calls)
}

func TestDeduplicate_KeysArePerChannel(t *testing.T) {
	store := storage.NewMemoryIdempotencyStore()
	calls := 0
	count := func(context.Context, domain.Event) error { calls++; return nil }

	ev := domain.Event{ID: "e-1"}
	require.NoError(t, Deduplicate(store, "a", zap.NewNop(), count)(context.Background(), ev))
	require.NoError(t, Deduplicate(store, "b", zap.NewNop(), count)(context.Background(), ev))

	assert.Equal(t, 2, calls)
}

func TestDeduplicate_NoIDAlwaysDelivered(t *testing.T) {
	calls := 0
	h := Deduplicate(failingStore{}, "ch", zap.NewNop(), func(context.Context, domain.Event) error {
		calls++
		return nil
	})

	require.NoError(t, h(context.Background(), domain.Event{}))
	require.NoError(t, h(context.Background(), domain.Event{}))
	assert.Equal(t, 2, calls)
}

func TestDeduplicate_StoreError(t *testing.T) {
	h := Deduplicate(failingStore{}, "ch", zap.NewNop(), func(context.Context, domain.Event) error {
		t.Fatal("handler must not run")
		return nil
	})

	assert.Error(t, h(context.Background(), domain.Event{ID: "e-1"}))
}

func TestSubscribeOnce_WithMemoryBus(t *testing.T) {
	bus := NewMemoryBus(8, zap.NewNop())
	defer bus.Close()

	calls := 0
	require.NoError(t, SubscribeOnce(context.Background(), bus, storage.NewMemoryIdempotencyStore(), "ch", zap.NewNop(),
		func(context.Context, domain.Event) error {
			calls++
			return nil
		}))

	ev := domain.Event{ID: "e-1"}
	require.NoError(t, bus.Publish(context.Background(), "ch", ev))
	require.NoError(t, bus.Publish(context.Background(), "ch", ev))
	bus.Wait()

	assert.Equal(t, 1, calls)
}
