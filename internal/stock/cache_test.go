package stock

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewCache(client, time.Minute, nil), mr
}

func TestFetchAvailabilityCaches(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	variantID := uuid.New()

	calls := 0
	loader := func(context.Context) (int64, error) {
		calls++
		return 7, nil
	}

	value, err := cache.FetchAvailability(ctx, variantID, loader)
	require.NoError(t, err)
	require.EqualValues(t, 7, value)
	require.Equal(t, 1, calls)

	value, err = cache.FetchAvailability(ctx, variantID, loader)
	require.NoError(t, err)
	require.EqualValues(t, 7, value)
	require.Equal(t, 1, calls)
}

func TestHandleStockMovedInvalidates(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	variantID := uuid.New()

	stale := 0
	_, err := cache.FetchAvailability(ctx, variantID, func(context.Context) (int64, error) {
		stale++
		return 5, nil
	})
	require.NoError(t, err)
	require.True(t, mr.Exists("stock:available:"+variantID.String()))

	require.NoError(t, cache.HandleStockMoved(ctx, StockMovedEvent{VariantID: variantID, Delta: -2, Reason: ReasonShipmentAllocation}))
	require.False(t, mr.Exists("stock:available:"+variantID.String()))

	value, err := cache.FetchAvailability(ctx, variantID, func(context.Context) (int64, error) {
		return 3, nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, value)
}

func TestFetchAvailabilityWithoutClient(t *testing.T) {
	var cache *Cache
	value, err := cache.FetchAvailability(context.Background(), uuid.New(), func(context.Context) (int64, error) {
		return 9, nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 9, value)
}
