package adapters

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/domain/entity"
)

func newTestTieredStore(t *testing.T) (*TieredStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	durable, err := NewSQLiteStore(setupTestDB(t), log)
	require.NoError(t, err)
	fast := NewRedisStore(rdb, "marketdata", log)

	return NewTieredStore(durable, fast, log), mr
}

func TestTieredStore_SetWritesBothTiers(t *testing.T) {
	store, mr := newTestTieredStore(t)
	ctx := context.Background()

	e := testEntry("ticker", "BTCUSDT", `{"price":50000}`)
	require.NoError(t, store.Set(ctx, e))

	got, found, expired := store.Get(ctx, e.Key)
	require.True(t, found)
	assert.JSONEq(t, `{"price":50000}`, string(got.Value))
	_ = expired // depends on the wall clock relative to the fixed WrittenAt

	assert.True(t, mr.Exists("marketdata:"+e.Key), "fast tier should hold the key")
}

// TestTieredStore_BackfillsFastTier checks that a durable hit repopulates the
// fast tier after its key evicted.
func TestTieredStore_BackfillsFastTier(t *testing.T) {
	store, mr := newTestTieredStore(t)
	ctx := context.Background()

	e := testEntry("ticker", "BTCUSDT", `{"price":1}`)
	require.NoError(t, store.Set(ctx, e))

	mr.FlushAll()
	require.False(t, mr.Exists("marketdata:"+e.Key))

	_, found := store.GetStale(ctx, e.Key)
	require.True(t, found, "durable tier should still serve the entry")
	assert.True(t, mr.Exists("marketdata:"+e.Key), "fast tier should be backfilled")
}

// TestTieredStore_SurvivesFastTierOutage checks that reads and writes keep
// working when Redis goes away mid-flight.
func TestTieredStore_SurvivesFastTierOutage(t *testing.T) {
	store, mr := newTestTieredStore(t)
	ctx := context.Background()

	e := testEntry("ticker", "BTCUSDT", `{"price":1}`)
	require.NoError(t, store.Set(ctx, e))

	mr.Close()

	e2 := testEntry("ticker", "ETHUSDT", `{"price":2}`)
	require.NoError(t, store.Set(ctx, e2), "durable write must succeed without the fast tier")

	_, found := store.GetStale(ctx, e.Key)
	assert.True(t, found, "reads must fall through to the durable tier")
}

// TestTieredStore_ExpiredFlag checks that expiry is computed at read time.
func TestTieredStore_ExpiredFlag(t *testing.T) {
	store, _ := newTestTieredStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base.Add(30 * time.Second) }

	e := testEntry("ticker", "BTCUSDT", `{"price":1}`)
	require.NoError(t, store.Set(ctx, e))

	_, found, expired := store.Get(ctx, e.Key)
	require.True(t, found)
	assert.False(t, expired, "entry is 30s into a 2m TTL")

	store.now = func() time.Time { return base.Add(3 * time.Minute) }
	_, found, expired = store.Get(ctx, e.Key)
	require.True(t, found)
	assert.True(t, expired)

	got, found := store.GetStale(ctx, e.Key)
	require.True(t, found, "GetStale must serve past expiry")
	assert.JSONEq(t, `{"price":1}`, string(got.Value))
}

func TestTieredStore_ClearBothTiers(t *testing.T) {
	store, mr := newTestTieredStore(t)
	ctx := context.Background()

	for _, e := range []*entity.CacheEntry{
		testEntry("ticker", "BTCUSDT", `{}`),
		testEntry("ohlcv", "BTCUSDT", `{}`),
	} {
		require.NoError(t, store.Set(ctx, e))
	}

	removed, err := store.Clear(ctx, "ticker", "")
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "count comes from the durable tier")

	_, found := store.GetStale(ctx, entity.BuildKey("ticker", "BTCUSDT", nil))
	assert.False(t, found)
	assert.False(t, mr.Exists("marketdata:ticker:BTCUSDT"))

	_, found = store.GetStale(ctx, entity.BuildKey("ohlcv", "BTCUSDT", nil))
	assert.True(t, found, "other endpoints must survive a filtered clear")
}

// TestTieredStore_NoFastTier checks the degraded mode with a nil fast backend.
func TestTieredStore_NoFastTier(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	durable, err := NewSQLiteStore(setupTestDB(t), log)
	require.NoError(t, err)
	store := NewTieredStore(durable, nil, log)
	ctx := context.Background()

	e := testEntry("ticker", "BTCUSDT", `{"price":1}`)
	require.NoError(t, store.Set(ctx, e))

	got, found := store.GetStale(ctx, e.Key)
	require.True(t, found)
	assert.Equal(t, json.RawMessage(`{"price":1}`), got.Value)

	removed, err := store.Clear(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	require.NoError(t, store.Close())
}
