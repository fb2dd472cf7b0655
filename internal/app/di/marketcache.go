// Package di provides dependency injection factories for creating application
// components.
package di

import (
	"context"
	"log/slog"

	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/adapters"
	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/domain/entity"
	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/usecase"
	"github.com/DansiDanutz/ZmartBot-sub009/internal/platform/config"
	infradb "github.com/DansiDanutz/ZmartBot-sub009/internal/platform/db"
	infraredis "github.com/DansiDanutz/ZmartBot-sub009/internal/platform/redis"
	"github.com/DansiDanutz/ZmartBot-sub009/internal/shared/ratelimiter"
)

// NewCacheManager builds the fully wired cache manager: durable SQLite tier,
// optional Redis fast tier, sliding-window rate limiter, policy registry and
// statistics. An unreachable Redis degrades to running without a fast tier;
// a broken durable tier is fatal.
func NewCacheManager(ctx context.Context, cfg config.Config, log *slog.Logger) (*usecase.Manager, error) {
	gdb, err := infradb.OpenCacheDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	durable, err := adapters.NewSQLiteStore(gdb, log)
	if err != nil {
		return nil, err
	}

	var fast usecase.CacheBackend
	if cfg.RedisAddr != "" {
		rdb, err := infraredis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("Redis unavailable, running without fast tier", "error", err)
		} else {
			fast = adapters.NewRedisStore(rdb, cfg.Namespace, log)
		}
	}

	store := adapters.NewTieredStore(durable, fast, log)
	limiter := ratelimiter.New(
		ratelimiter.Limit{Calls: cfg.GlobalLimit.Calls, Period: cfg.GlobalLimit.Period},
		ratelimiter.Limit{Calls: cfg.EndpointLimit.Calls, Period: cfg.EndpointLimit.Period},
		ratelimiter.Limit{Calls: cfg.BurstLimit.Calls, Period: cfg.BurstLimit.Period},
	)
	registry := usecase.NewPolicyRegistry(entity.EndpointPolicy{
		TTL:      cfg.DefaultTTL,
		Priority: cfg.DefaultPriority,
	})

	return usecase.NewManager(store, limiter, registry, usecase.NewStats(), log, usecase.ManagerConfig{
		FetchTimeout:       cfg.FetchTimeout,
		ShortWaitThreshold: cfg.ShortWaitThreshold,
		SchedulerInterval:  cfg.SchedulerInterval,
		SchedulerBatchSize: cfg.SchedulerBatchSize,
	}), nil
}
