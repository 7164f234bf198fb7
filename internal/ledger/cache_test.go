package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheFetchJSONPopulatesOnce(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, onHandKey(1, 10, 0, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC))...)
	require.NoError(t, err)

	calls := 0
	loader := func(ctx context.Context) (any, error) {
		calls++
		return OnHand{ItemID: 10, Qty: 9, Value: 47}, nil
	}

	var first OnHand
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.InDelta(t, 9, first.Qty, 0.001)

	var second OnHand
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.InDelta(t, 47, second.Value, 0.001)
	require.Equal(t, 1, calls)
}

func TestCacheBumpInvalidatesOldKeys(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "ledger", "onhand", "1", "10")
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx))
	after, err := cache.BuildKey(ctx, "ledger", "onhand", "1", "10")
	require.NoError(t, err)

	require.NotEqual(t, before, after)
}

func TestOnHandCacheDistinguishesAsOfWithinHour(t *testing.T) {
	cache, _ := newTestCache(t)
	repo := &memoryLedger{}
	md := fakeMasterData{warehouses: map[int64]bool{1: true}, items: map[int64]bool{10: true}}
	svc := NewService(repo, md, cache, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, repo.InsertMoves(context.Background(), []Move{{
		OrgID: 1, ItemID: 10, WarehouseID: 1,
		Kind: KindGRN, Direction: DirectionIn,
		Qty: 5, UnitCost: 5, TotalCost: 25,
		MoveDate: time.Date(2025, 5, 1, 14, 30, 0, 0, time.UTC),
	}}))

	before, err := svc.OnHand(ledgerCtx(), 10, 1, time.Date(2025, 5, 1, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Zero(t, before.Qty)

	// Same hour, later instant: must not reuse the 14:00 aggregate.
	after, err := svc.OnHand(ledgerCtx(), 10, 1, time.Date(2025, 5, 1, 14, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	require.InDelta(t, 5, after.Qty, 0.001)
	require.InDelta(t, 25, after.Value, 0.001)
}

func TestNilCachePassesThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "ledger", "onhand", "1")
	require.NoError(t, err)

	var out OnHand
	err = cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return OnHand{ItemID: 1, Qty: 3}, nil
	})
	require.NoError(t, err)
	require.InDelta(t, 3, out.Qty, 0.001)
	require.NoError(t, cache.Bump(ctx))
}
