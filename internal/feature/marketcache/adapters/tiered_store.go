package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/domain/entity"
	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/usecase"
)

// TieredStore composes the durable tier with an optional fast tier. The fast
// tier is a cache of the durable tier, never the source of truth: writes land
// durably first and the fast tier is best effort, reads try the fast tier and
// backfill it on a durable hit. A nil fast backend means no fast tier is
// configured; that decision is made by configuration, never by probing.
type TieredStore struct {
	durable usecase.CacheBackend
	fast    usecase.CacheBackend
	log     *slog.Logger

	now func() time.Time
}

var _ usecase.CacheStore = (*TieredStore)(nil)

// NewTieredStore builds the tiered store. durable is required; fast may be
// nil.
func NewTieredStore(durable, fast usecase.CacheBackend, log *slog.Logger) *TieredStore {
	if log == nil {
		log = slog.Default()
	}
	return &TieredStore{durable: durable, fast: fast, log: log, now: time.Now}
}

// lookup reads fast-then-durable and backfills the fast tier on durable hits.
// Reads hold no store-wide lock, so a read of one key never blocks writes of
// another.
func (t *TieredStore) lookup(ctx context.Context, key string) (*entity.CacheEntry, bool) {
	if t.fast != nil {
		e, err := t.fast.Get(ctx, key)
		if err == nil {
			return e, true
		}
		if !errors.Is(err, usecase.ErrNotFound) {
			t.log.Warn("fast tier read failed", "key", key, "error", err)
		}
	}

	e, err := t.durable.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, usecase.ErrNotFound) {
			t.log.Warn("durable tier read failed", "key", key, "error", err)
		}
		return nil, false
	}

	if t.fast != nil {
		if err := t.fast.Set(ctx, e); err != nil {
			t.log.Warn("fast tier backfill failed", "key", key, "error", err)
		}
	}
	return e, true
}

// Get returns the entry plus found and expired flags.
func (t *TieredStore) Get(ctx context.Context, key string) (*entity.CacheEntry, bool, bool) {
	e, found := t.lookup(ctx, key)
	if !found {
		return nil, false, false
	}
	return e, true, e.Expired(t.now())
}

// GetStale returns the entry regardless of expiry.
func (t *TieredStore) GetStale(ctx context.Context, key string) (*entity.CacheEntry, bool) {
	return t.lookup(ctx, key)
}

// Set writes durable-first. An unreachable fast tier only logs a warning and
// never fails the write.
func (t *TieredStore) Set(ctx context.Context, e *entity.CacheEntry) error {
	if err := t.durable.Set(ctx, e); err != nil {
		return fmt.Errorf("durable tier write: %w", err)
	}
	if t.fast != nil {
		if err := t.fast.Set(ctx, e); err != nil {
			t.log.Warn("fast tier write failed", "key", e.Key, "error", err)
		}
	}
	return nil
}

func (t *TieredStore) Delete(ctx context.Context, key string) error {
	if err := t.durable.Delete(ctx, key); err != nil {
		return err
	}
	if t.fast != nil {
		if err := t.fast.Delete(ctx, key); err != nil {
			t.log.Warn("fast tier delete failed", "key", key, "error", err)
		}
	}
	return nil
}

// Clear removes matching entries from both tiers. The returned count is the
// durable tier's, the source of truth.
func (t *TieredStore) Clear(ctx context.Context, endpoint, symbol string) (int, error) {
	n, err := t.durable.Clear(ctx, endpoint, symbol)
	if err != nil {
		return n, err
	}
	if t.fast != nil {
		if _, err := t.fast.Clear(ctx, endpoint, symbol); err != nil {
			t.log.Warn("fast tier clear failed", "endpoint", endpoint, "symbol", symbol, "error", err)
		}
	}
	return n, nil
}

func (t *TieredStore) Close() error {
	var errs []error
	if t.fast != nil {
		errs = append(errs, t.fast.Close())
	}
	errs = append(errs, t.durable.Close())
	return errors.Join(errs...)
}
