package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/domain/entity"
	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/usecase"
)

// DefaultNamespace prefixes fast-tier keys when none is configured.
const DefaultNamespace = "marketdata"

// Fast-tier keys live longer than the logical TTL so stale reads can still be
// served from Redis instead of hitting the durable tier.
const fastTTLFactor = 2

// redisEnvelope is the fast-tier wire form of a cache entry.
type redisEnvelope struct {
	Endpoint   string          `json:"endpoint"`
	Symbol     string          `json:"symbol"`
	Value      json.RawMessage `json:"value"`
	WrittenAt  time.Time       `json:"written_at"`
	TTLSeconds int64           `json:"ttl_seconds"`
	Priority   int             `json:"priority"`
}

type redisStore struct {
	rdb       *redis.Client
	namespace string
	log       *slog.Logger
}

var _ usecase.CacheBackend = (*redisStore)(nil)

// NewRedisStore wraps a Redis client as the fast cache tier. If namespace is
// empty, DefaultNamespace is used.
func NewRedisStore(rdb *redis.Client, namespace string, log *slog.Logger) *redisStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if log == nil {
		log = slog.Default()
	}
	return &redisStore{rdb: rdb, namespace: namespace, log: log}
}

func (s *redisStore) redisKey(key string) string {
	return s.namespace + ":" + key
}

// Get returns the entry for key, or usecase.ErrNotFound. A payload that does
// not decode is deleted and reported as not found.
func (s *redisStore) Get(ctx context.Context, key string) (*entity.CacheEntry, error) {
	b, err := s.rdb.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var env redisEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		s.log.Warn("corrupt fast-tier entry deleted", "key", key)
		_ = s.rdb.Del(ctx, s.redisKey(key)).Err()
		return nil, usecase.ErrNotFound
	}
	return &entity.CacheEntry{
		Key:       key,
		Endpoint:  env.Endpoint,
		Symbol:    env.Symbol,
		Value:     env.Value,
		WrittenAt: env.WrittenAt,
		TTL:       time.Duration(env.TTLSeconds) * time.Second,
		Priority:  entity.PriorityClass(env.Priority),
	}, nil
}

func (s *redisStore) Set(ctx context.Context, e *entity.CacheEntry) error {
	env := redisEnvelope{
		Endpoint:   e.Endpoint,
		Symbol:     e.Symbol,
		Value:      e.Value,
		WrittenAt:  e.WrittenAt,
		TTLSeconds: int64(e.TTL / time.Second),
		Priority:   int(e.Priority),
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.redisKey(e.Key), b, fastTTLFactor*e.TTL).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.redisKey(key)).Err()
}

// Clear drops fast-tier keys matching the filters using SCAN, never KEYS.
// Patterns may over-match keys that embed the filter text in a parameter;
// deleting extra fast-tier keys is harmless since the durable tier stays
// authoritative. The removed count reported to callers comes from the durable
// tier, so this returns the number of fast-tier keys dropped for logging only.
func (s *redisStore) Clear(ctx context.Context, endpoint, symbol string) (int, error) {
	ep, sym := "*", "*"
	if endpoint != "" {
		ep = entity.SafeKeyPart(endpoint)
	}
	if symbol != "" {
		sym = entity.SafeKeyPart(symbol)
	}

	removed := 0
	for _, pattern := range []string{
		fmt.Sprintf("%s:%s:%s", s.namespace, ep, sym),
		fmt.Sprintf("%s:%s:%s:*", s.namespace, ep, sym),
	} {
		n, err := s.deleteByPattern(ctx, pattern)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// deleteByPattern deletes all keys matching a pattern using SCAN.
func (s *redisStore) deleteByPattern(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	removed := 0
	for {
		keys, cur, err := s.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return removed, err
			}
			removed += len(keys)
		}
		cursor = cur
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}
