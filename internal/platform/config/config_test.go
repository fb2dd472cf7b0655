package config

import (
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default configuration must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty db path",
			mutate:  func(c *Config) { c.DBPath = "" },
			wantErr: true,
		},
		{
			name:    "zero global calls",
			mutate:  func(c *Config) { c.GlobalLimit.Calls = 0 },
			wantErr: true,
		},
		{
			name:    "negative endpoint period",
			mutate:  func(c *Config) { c.EndpointLimit.Period = -time.Second },
			wantErr: true,
		},
		{
			name:    "burst period not shorter than endpoint period",
			mutate:  func(c *Config) { c.BurstLimit.Period = c.EndpointLimit.Period },
			wantErr: true,
		},
		{
			name:    "zero scheduler interval",
			mutate:  func(c *Config) { c.SchedulerInterval = 0 },
			wantErr: true,
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.SchedulerBatchSize = 0 },
			wantErr: true,
		},
		{
			name:    "zero fetch timeout",
			mutate:  func(c *Config) { c.FetchTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "negative short wait threshold",
			mutate:  func(c *Config) { c.ShortWaitThreshold = -time.Second },
			wantErr: true,
		},
		{
			name:   "zero short wait threshold is allowed",
			mutate: func(c *Config) { c.ShortWaitThreshold = 0 },
		},
		{
			name:    "zero default ttl",
			mutate:  func(c *Config) { c.DefaultTTL = 0 },
			wantErr: true,
		},
		{
			name:    "unknown default priority",
			mutate:  func(c *Config) { c.DefaultPriority = 42 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected an error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("CACHE_NAMESPACE", "md-test")
	t.Setenv("CACHE_DB_PATH", "/tmp/test.db")
	t.Setenv("RATE_GLOBAL_CALLS", "500")
	t.Setenv("RATE_ENDPOINT_PERIOD", "2m")
	t.Setenv("SCHEDULER_BATCH_SIZE", "25")
	t.Setenv("FETCH_TIMEOUT", "5s")

	cfg := Load()

	if cfg.RedisAddr != "cache.internal:6380" {
		t.Errorf("unexpected redis addr %q", cfg.RedisAddr)
	}
	if cfg.Namespace != "md-test" {
		t.Errorf("unexpected namespace %q", cfg.Namespace)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.GlobalLimit.Calls != 500 {
		t.Errorf("unexpected global calls %d", cfg.GlobalLimit.Calls)
	}
	if cfg.EndpointLimit.Period != 2*time.Minute {
		t.Errorf("unexpected endpoint period %v", cfg.EndpointLimit.Period)
	}
	if cfg.SchedulerBatchSize != 25 {
		t.Errorf("unexpected batch size %d", cfg.SchedulerBatchSize)
	}
	if cfg.FetchTimeout != 5*time.Second {
		t.Errorf("unexpected fetch timeout %v", cfg.FetchTimeout)
	}
}

func TestLoad_DefaultRedisPort(t *testing.T) {
	t.Setenv("REDIS_HOST", "localhost")

	if cfg := Load(); cfg.RedisAddr != "localhost:6379" {
		t.Errorf("expected the default port, got %q", cfg.RedisAddr)
	}
}

func TestLoad_NoRedisHostDisablesFastTier(t *testing.T) {
	t.Setenv("REDIS_HOST", "")

	if cfg := Load(); cfg.RedisAddr != "" {
		t.Errorf("expected empty redis addr, got %q", cfg.RedisAddr)
	}
}

func TestLoad_MalformedValuesKeepDefaults(t *testing.T) {
	t.Setenv("RATE_GLOBAL_CALLS", "many")
	t.Setenv("FETCH_TIMEOUT", "soon")

	cfg := Load()
	def := Default()

	if cfg.GlobalLimit.Calls != def.GlobalLimit.Calls {
		t.Errorf("malformed int should keep the default, got %d", cfg.GlobalLimit.Calls)
	}
	if cfg.FetchTimeout != def.FetchTimeout {
		t.Errorf("malformed duration should keep the default, got %v", cfg.FetchTimeout)
	}
}
