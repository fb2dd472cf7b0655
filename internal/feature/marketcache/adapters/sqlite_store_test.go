package adapters

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/domain/entity"
	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/usecase"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func newTestSQLiteStore(t *testing.T) *sqliteStore {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewSQLiteStore(setupTestDB(t), log)
	require.NoError(t, err)
	return store
}

func testEntry(endpoint, symbol, value string) *entity.CacheEntry {
	return &entity.CacheEntry{
		Key:       entity.BuildKey(endpoint, symbol, nil),
		Endpoint:  endpoint,
		Symbol:    symbol,
		Value:     json.RawMessage(value),
		WrittenAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		TTL:       2 * time.Minute,
		Priority:  entity.PriorityCritical,
	}
}

func TestSQLiteStore_SetAndGet(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	want := testEntry("ticker", "BTCUSDT", `{"price":50000}`)
	require.NoError(t, store.Set(ctx, want))

	got, err := store.Get(ctx, want.Key)
	require.NoError(t, err)
	assert.Equal(t, want.Key, got.Key)
	assert.Equal(t, want.Endpoint, got.Endpoint)
	assert.Equal(t, want.Symbol, got.Symbol)
	assert.JSONEq(t, string(want.Value), string(got.Value))
	assert.Equal(t, want.TTL, got.TTL)
	assert.Equal(t, want.Priority, got.Priority)
	assert.True(t, want.WrittenAt.Equal(got.WrittenAt))
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, err := store.Get(context.Background(), "ticker:UNKNOWN")
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestSQLiteStore_SetOverwrites(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	e := testEntry("ticker", "BTCUSDT", `{"price":1}`)
	require.NoError(t, store.Set(ctx, e))

	e.Value = json.RawMessage(`{"price":2}`)
	e.WrittenAt = e.WrittenAt.Add(time.Minute)
	require.NoError(t, store.Set(ctx, e))

	got, err := store.Get(ctx, e.Key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":2}`, string(got.Value))

	var count int64
	require.NoError(t, store.db.Model(&CacheRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "upsert must not create a second row")
}

// TestSQLiteStore_CorruptRecordSelfHeals checks that an unreadable row is
// deleted on read instead of surfacing to callers.
func TestSQLiteStore_CorruptRecordSelfHeals(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := CacheRecord{
		Key:        "ticker:BTCUSDT",
		Endpoint:   "ticker",
		Symbol:     "BTCUSDT",
		Value:      `{"price":`, // truncated JSON
		WrittenAt:  time.Now(),
		TTLSeconds: 120,
		Priority:   0,
	}
	require.NoError(t, store.db.Create(&rec).Error)

	_, err := store.Get(ctx, rec.Key)
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	var count int64
	require.NoError(t, store.db.Model(&CacheRecord{}).Where("key = ?", rec.Key).Count(&count).Error)
	assert.Equal(t, int64(0), count, "corrupt row should be deleted")
}

func TestSQLiteStore_ZeroTTLIsCorrupt(t *testing.T) {
	store := newTestSQLiteStore(t)

	rec := CacheRecord{
		Key:        "ticker:BTCUSDT",
		Endpoint:   "ticker",
		Symbol:     "BTCUSDT",
		Value:      `{"price":1}`,
		WrittenAt:  time.Now(),
		TTLSeconds: 0,
	}
	require.NoError(t, store.db.Create(&rec).Error)

	_, err := store.Get(context.Background(), rec.Key)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	e := testEntry("ticker", "BTCUSDT", `{}`)
	require.NoError(t, store.Set(ctx, e))
	require.NoError(t, store.Delete(ctx, e.Key))

	_, err := store.Get(ctx, e.Key)
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, e.Key), "deleting a missing key is not an error")
}

func TestSQLiteStore_Clear(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, e := range []*entity.CacheEntry{
		testEntry("ticker", "BTCUSDT", `{}`),
		testEntry("ticker", "ETHUSDT", `{}`),
		testEntry("ohlcv", "BTCUSDT", `{}`),
	} {
		require.NoError(t, store.Set(ctx, e))
	}

	tests := []struct {
		name        string
		endpoint    string
		symbol      string
		wantRemoved int
	}{
		{"by endpoint and symbol", "ticker", "BTCUSDT", 1},
		{"by endpoint", "ticker", "", 1}, // ETHUSDT is the only ticker row left
		{"already cleared", "ticker", "", 0},
		{"everything", "", "", 1}, // the ohlcv row
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			removed, err := store.Clear(ctx, tt.endpoint, tt.symbol)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, removed)
		})
	}
}
