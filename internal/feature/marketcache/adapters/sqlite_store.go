// Package adapters provides the storage backends of the market-data cache:
// a durable SQLite tier, an optional Redis fast tier, and their tiered
// composition.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/domain/entity"
	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/usecase"
)

// CacheRecord is the durable-tier row for one cache key. The value column
// holds the raw JSON payload, so every record is self-describing and survives
// restarts as the source of truth for stale fallback.
type CacheRecord struct {
	Key        string    `gorm:"primaryKey;size:512"`
	Endpoint   string    `gorm:"size:64;not null;index:cache_endpoint_symbol,priority:1"`
	Symbol     string    `gorm:"size:64;not null;index:cache_endpoint_symbol,priority:2"`
	Value      string    `gorm:"not null"`
	WrittenAt  time.Time `gorm:"not null"`
	TTLSeconds int64     `gorm:"not null"`
	Priority   int       `gorm:"not null"`
}

func (CacheRecord) TableName() string {
	return "cache_entries"
}

type sqliteStore struct {
	db  *gorm.DB
	log *slog.Logger
}

var _ usecase.CacheBackend = (*sqliteStore)(nil)

// NewSQLiteStore migrates the cache table and returns the durable backend.
func NewSQLiteStore(db *gorm.DB, log *slog.Logger) (*sqliteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&CacheRecord{}); err != nil {
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

// Get returns the entry for key, or usecase.ErrNotFound. A record whose value
// is not readable JSON is deleted and reported as not found; corruption never
// reaches callers.
func (s *sqliteStore) Get(ctx context.Context, key string) (*entity.CacheEntry, error) {
	var rec CacheRecord
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !json.Valid([]byte(rec.Value)) || rec.TTLSeconds <= 0 {
		s.log.Warn("corrupt cache record deleted", "key", key)
		_ = s.db.WithContext(ctx).Delete(&CacheRecord{}, "key = ?", key).Error
		return nil, usecase.ErrNotFound
	}
	return recordToEntry(rec), nil
}

// Set upserts the record for the entry's key. Last writer wins per key.
func (s *sqliteStore) Set(ctx context.Context, e *entity.CacheEntry) error {
	rec := entryToRecord(e)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"endpoint", "symbol", "value", "written_at", "ttl_seconds", "priority",
		}),
	}).Create(&rec).Error
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&CacheRecord{}, "key = ?", key).Error
}

// Clear removes records matching the optional filters and returns the count.
func (s *sqliteStore) Clear(ctx context.Context, endpoint, symbol string) (int, error) {
	q := s.db.WithContext(ctx)
	if endpoint != "" {
		q = q.Where("endpoint = ?", endpoint)
	}
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	res := q.Where("1 = 1").Delete(&CacheRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func entryToRecord(e *entity.CacheEntry) CacheRecord {
	return CacheRecord{
		Key:        e.Key,
		Endpoint:   e.Endpoint,
		Symbol:     e.Symbol,
		Value:      string(e.Value),
		WrittenAt:  e.WrittenAt,
		TTLSeconds: int64(e.TTL / time.Second),
		Priority:   int(e.Priority),
	}
}

func recordToEntry(rec CacheRecord) *entity.CacheEntry {
	return &entity.CacheEntry{
		Key:       rec.Key,
		Endpoint:  rec.Endpoint,
		Symbol:    rec.Symbol,
		Value:     json.RawMessage(rec.Value),
		WrittenAt: rec.WrittenAt,
		TTL:       time.Duration(rec.TTLSeconds) * time.Second,
		Priority:  entity.PriorityClass(rec.Priority),
	}
}
