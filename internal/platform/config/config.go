// Package config holds the enumerated, validated configuration of the
// market-data cache service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/domain/entity"
)

// RateLimit is one window budget: at most Calls within Period.
type RateLimit struct {
	Calls  int
	Period time.Duration
}

// Config enumerates every recognized option. It is validated once at
// construction and immutable afterwards.
type Config struct {
	// RedisAddr enables the fast cache tier when non-empty ("host:port").
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Namespace prefixes fast-tier keys.
	Namespace string
	// DBPath is the SQLite file backing the durable tier.
	DBPath string

	GlobalLimit   RateLimit
	EndpointLimit RateLimit
	BurstLimit    RateLimit

	SchedulerInterval  time.Duration
	SchedulerBatchSize int
	FetchTimeout       time.Duration
	ShortWaitThreshold time.Duration

	// Policy applied to endpoints missing from the registry.
	DefaultTTL      time.Duration
	DefaultPriority entity.PriorityClass
}

// Default returns the configuration used when no environment overrides exist.
func Default() Config {
	return Config{
		Namespace:          "marketdata",
		DBPath:             "data/marketcache.db",
		GlobalLimit:        RateLimit{Calls: 300, Period: time.Minute},
		EndpointLimit:      RateLimit{Calls: 30, Period: time.Minute},
		BurstLimit:         RateLimit{Calls: 10, Period: 2 * time.Second},
		SchedulerInterval:  30 * time.Second,
		SchedulerBatchSize: 10,
		FetchTimeout:       15 * time.Second,
		ShortWaitThreshold: 10 * time.Second,
		DefaultTTL:         15 * time.Minute,
		DefaultPriority:    entity.PriorityMedium,
	}
}

// Load builds the configuration from environment variables on top of the
// defaults.
func Load() Config {
	cfg := Default()

	if host := os.Getenv("REDIS_HOST"); host != "" {
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		cfg.RedisAddr = host + ":" + port
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = envInt("REDIS_DB", cfg.RedisDB)

	if v := os.Getenv("CACHE_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	if v := os.Getenv("CACHE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	cfg.GlobalLimit.Calls = envInt("RATE_GLOBAL_CALLS", cfg.GlobalLimit.Calls)
	cfg.GlobalLimit.Period = envDuration("RATE_GLOBAL_PERIOD", cfg.GlobalLimit.Period)
	cfg.EndpointLimit.Calls = envInt("RATE_ENDPOINT_CALLS", cfg.EndpointLimit.Calls)
	cfg.EndpointLimit.Period = envDuration("RATE_ENDPOINT_PERIOD", cfg.EndpointLimit.Period)
	cfg.BurstLimit.Calls = envInt("RATE_BURST_CALLS", cfg.BurstLimit.Calls)
	cfg.BurstLimit.Period = envDuration("RATE_BURST_PERIOD", cfg.BurstLimit.Period)

	cfg.SchedulerInterval = envDuration("SCHEDULER_INTERVAL", cfg.SchedulerInterval)
	cfg.SchedulerBatchSize = envInt("SCHEDULER_BATCH_SIZE", cfg.SchedulerBatchSize)
	cfg.FetchTimeout = envDuration("FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.ShortWaitThreshold = envDuration("SHORT_WAIT_THRESHOLD", cfg.ShortWaitThreshold)
	cfg.DefaultTTL = envDuration("CACHE_DEFAULT_TTL", cfg.DefaultTTL)

	return cfg
}

// Validate fails fast on invalid values so misconfiguration is caught at
// startup, not mid-request.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: CACHE_DB_PATH must not be empty")
	}
	for _, l := range []struct {
		name  string
		limit RateLimit
	}{
		{"global", c.GlobalLimit},
		{"endpoint", c.EndpointLimit},
		{"burst", c.BurstLimit},
	} {
		if l.limit.Calls <= 0 {
			return fmt.Errorf("config: %s rate limit calls must be positive, got %d", l.name, l.limit.Calls)
		}
		if l.limit.Period <= 0 {
			return fmt.Errorf("config: %s rate limit period must be positive, got %s", l.name, l.limit.Period)
		}
	}
	if c.BurstLimit.Period >= c.EndpointLimit.Period {
		return fmt.Errorf("config: burst period %s must be shorter than the endpoint period %s",
			c.BurstLimit.Period, c.EndpointLimit.Period)
	}
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("config: scheduler interval must be positive, got %s", c.SchedulerInterval)
	}
	if c.SchedulerBatchSize <= 0 {
		return fmt.Errorf("config: scheduler batch size must be positive, got %d", c.SchedulerBatchSize)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("config: fetch timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.ShortWaitThreshold < 0 {
		return fmt.Errorf("config: short wait threshold must not be negative, got %s", c.ShortWaitThreshold)
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("config: default TTL must be positive, got %s", c.DefaultTTL)
	}
	if !c.DefaultPriority.Valid() {
		return fmt.Errorf("config: default priority %d is not a known class", c.DefaultPriority)
	}
	return nil
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
