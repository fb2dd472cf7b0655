package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/domain/entity"
)

// CacheStore abstracts the tiered cache storage.
// Following Go convention: interfaces are defined by the consumer (usecase),
// not the provider (adapters).
type CacheStore interface {
	// Get returns the entry for key plus found and expired flags.
	Get(ctx context.Context, key string) (*entity.CacheEntry, bool, bool)
	// GetStale returns the entry for key regardless of expiry.
	GetStale(ctx context.Context, key string) (*entity.CacheEntry, bool)
	Set(ctx context.Context, e *entity.CacheEntry) error
	Delete(ctx context.Context, key string) error
	// Clear removes entries matching the optional endpoint/symbol filters and
	// returns how many were removed from the durable tier.
	Clear(ctx context.Context, endpoint, symbol string) (int, error)
	Close() error
}

// CacheBackend is one storage tier. Backends report a missing or self-healed
// record as ErrNotFound and never surface corruption.
type CacheBackend interface {
	Get(ctx context.Context, key string) (*entity.CacheEntry, error)
	Set(ctx context.Context, e *entity.CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context, endpoint, symbol string) (int, error)
	Close() error
}

// RateLimiter guards the external API call budget.
type RateLimiter interface {
	CanCall(endpoint string) (bool, time.Duration)
	RecordCall(endpoint string)
}

// FetchFunc retrieves one raw value from the external market-data API.
// Implementations are supplied by the callers (indicator calculators, scoring
// agents); this layer never builds HTTP requests itself.
type FetchFunc func(ctx context.Context, endpoint, symbol string, params map[string]string) (json.RawMessage, error)

// ManagerConfig tunes the fetch orchestrator and the background scheduler.
// Zero values take the defaults below.
type ManagerConfig struct {
	// FetchTimeout bounds every external fetch, foreground or scheduled.
	FetchTimeout time.Duration
	// ShortWaitThreshold is the longest rate-limit wait worth sleeping through
	// when no stale fallback exists.
	ShortWaitThreshold time.Duration
	// SchedulerInterval is the background refresh cycle period.
	SchedulerInterval time.Duration
	// SchedulerBatchSize bounds refresh dispatches per cycle.
	SchedulerBatchSize int
	// RefreshAheadFactor is the fraction of an entry's TTL after which the
	// scheduler treats it as a refresh candidate.
	RefreshAheadFactor float64
}

const (
	defaultFetchTimeout       = 15 * time.Second
	defaultShortWaitThreshold = 10 * time.Second
	defaultSchedulerInterval  = 30 * time.Second
	defaultSchedulerBatchSize = 10
	defaultRefreshAheadFactor = 0.8
)

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.ShortWaitThreshold <= 0 {
		c.ShortWaitThreshold = defaultShortWaitThreshold
	}
	if c.SchedulerInterval <= 0 {
		c.SchedulerInterval = defaultSchedulerInterval
	}
	if c.SchedulerBatchSize <= 0 {
		c.SchedulerBatchSize = defaultSchedulerBatchSize
	}
	if c.RefreshAheadFactor <= 0 || c.RefreshAheadFactor >= 1 {
		c.RefreshAheadFactor = defaultRefreshAheadFactor
	}
	return c
}

// Manager is the caching and rate-limit-aware data-access layer between
// business logic and the external market-data API. One Manager is constructed
// at process start and injected into consumers; it is safe for concurrent use.
type Manager struct {
	store    CacheStore
	limiter  RateLimiter
	policies *PolicyRegistry
	stats    *Stats
	log      *slog.Logger
	cfg      ManagerConfig

	group     singleflight.Group
	monitored *monitoredSet

	fetchMu  sync.RWMutex
	fetchers map[string]FetchFunc

	schedMu   sync.Mutex
	schedStop context.CancelFunc
	schedDone chan struct{}

	stateMu sync.Mutex
	states  map[string]refreshState

	// Injected for tests.
	now   func() time.Time
	sleep func(d time.Duration)
}

// NewManager wires the orchestrator. All collaborators are required except
// that the store may run without a fast tier (that choice lives inside the
// store, not here).
func NewManager(store CacheStore, limiter RateLimiter, policies *PolicyRegistry, stats *Stats, log *slog.Logger, cfg ManagerConfig) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:     store,
		limiter:   limiter,
		policies:  policies,
		stats:     stats,
		log:       log,
		cfg:       cfg.withDefaults(),
		monitored: newMonitoredSet(),
		fetchers:  make(map[string]FetchFunc),
		states:    make(map[string]refreshState),
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// Close stops the background scheduler and releases the storage tiers.
func (m *Manager) Close() error {
	m.StopScheduler()
	return m.store.Close()
}

// Get returns a fresh cached value, if one exists. It never touches the rate
// limiter or the external API.
func (m *Manager) Get(ctx context.Context, endpoint, symbol string, params map[string]string) (json.RawMessage, bool) {
	key := entity.BuildKey(endpoint, symbol, params)
	e, found, expired := m.store.Get(ctx, key)
	if !found || expired {
		m.stats.Miss(endpoint)
		return nil, false
	}
	m.stats.Hit(endpoint)
	return e.Value, true
}

// Set writes a value under the endpoint's policy TTL and starts monitoring
// the key for background refresh.
func (m *Manager) Set(ctx context.Context, endpoint, symbol string, params map[string]string, value json.RawMessage) error {
	key := entity.BuildKey(endpoint, symbol, params)
	policy := m.policies.Resolve(endpoint)
	e := &entity.CacheEntry{
		Key:       key,
		Endpoint:  endpoint,
		Symbol:    symbol,
		Value:     value,
		WrittenAt: m.now(),
		TTL:       policy.TTL,
		Priority:  policy.Priority,
	}
	if err := m.store.Set(ctx, e); err != nil {
		return err
	}
	m.stats.Update(endpoint)
	m.monitored.Add(monitoredKey{Endpoint: endpoint, Symbol: symbol, Key: key, Params: cloneParams(params)})
	return nil
}

// GetOrFetch is the get-or-fetch path. A fresh cache hit returns immediately.
// Otherwise the fetch goes through the rate limiter and single-flight: at most
// one external call per key is in flight, concurrent callers share its result.
// When the limiter denies or the fetch fails, a stale value is served if one
// exists; only when no fallback exists at all does the result surface
// StatusRateLimited or StatusFailed.
func (m *Manager) GetOrFetch(ctx context.Context, endpoint, symbol string, params map[string]string, fetch FetchFunc, forceRefresh bool) entity.FetchResult {
	key := entity.BuildKey(endpoint, symbol, params)

	if !forceRefresh {
		if e, found, expired := m.store.Get(ctx, key); found && !expired {
			m.stats.Hit(endpoint)
			return entity.FetchResult{Status: entity.StatusHit, Value: e.Value}
		}
		m.stats.Miss(endpoint)
	}

	ch := m.group.DoChan(key, func() (any, error) {
		return m.fetchThroughLimiter(endpoint, symbol, params, key, fetch), nil
	})

	select {
	case res := <-ch:
		return res.Val.(entity.FetchResult)
	case <-ctx.Done():
		// The in-flight fetch keeps running so other waiters still benefit
		// from its result; this caller falls back to stale or a cancellation
		// result right away.
		bg := context.WithoutCancel(ctx)
		if e, found := m.store.GetStale(bg, key); found {
			m.stats.StaleServe(endpoint)
			return entity.FetchResult{Status: entity.StatusStale, Value: e.Value, Err: ctx.Err()}
		}
		return entity.FetchResult{Status: entity.StatusFailed, Err: ctx.Err()}
	}
}

// fetchThroughLimiter runs inside the single flight, detached from any one
// caller's context.
func (m *Manager) fetchThroughLimiter(endpoint, symbol string, params map[string]string, key string, fetch FetchFunc) entity.FetchResult {
	ctx := context.Background()

	allowed, wait := m.limiter.CanCall(endpoint)
	if !allowed {
		m.stats.Denial(endpoint)
		if e, found := m.store.GetStale(ctx, key); found {
			m.stats.StaleServe(endpoint)
			m.log.Debug("rate limited, serving stale value",
				"endpoint", endpoint, "symbol", symbol, "wait", wait)
			return entity.FetchResult{Status: entity.StatusStale, Value: e.Value, Wait: wait}
		}
		if wait <= m.cfg.ShortWaitThreshold {
			// No fallback and the window frees soon: wait it out once.
			m.sleep(wait)
			if allowed, wait = m.limiter.CanCall(endpoint); allowed {
				return m.doFetch(ctx, endpoint, symbol, params, key, fetch)
			}
		}
		return entity.FetchResult{
			Status: entity.StatusRateLimited,
			Wait:   wait,
			Err:    &RateLimitError{Endpoint: endpoint, Wait: wait},
		}
	}
	return m.doFetch(ctx, endpoint, symbol, params, key, fetch)
}

// doFetch reserves a rate-limiter slot, runs the external call under the
// configured timeout, and writes the result through the store.
func (m *Manager) doFetch(ctx context.Context, endpoint, symbol string, params map[string]string, key string, fetch FetchFunc) entity.FetchResult {
	// Reserve the slot before the call executes so a slow or failing call
	// still consumes budget and cannot be retried around the limiter.
	m.limiter.RecordCall(endpoint)

	fctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()

	value, err := fetch(fctx, endpoint, symbol, params)
	if err != nil {
		if e, found := m.store.GetStale(ctx, key); found {
			m.stats.StaleServe(endpoint)
			m.log.Warn("fetch failed, serving stale value",
				"endpoint", endpoint, "symbol", symbol, "error", err)
			return entity.FetchResult{Status: entity.StatusStale, Value: e.Value}
		}
		return entity.FetchResult{
			Status: entity.StatusFailed,
			Err:    &FetchError{Endpoint: endpoint, Symbol: symbol, Cause: err},
		}
	}

	policy := m.policies.Resolve(endpoint)
	e := &entity.CacheEntry{
		Key:       key,
		Endpoint:  endpoint,
		Symbol:    symbol,
		Value:     value,
		WrittenAt: m.now(),
		TTL:       policy.TTL,
		Priority:  policy.Priority,
	}
	if err := m.store.Set(ctx, e); err != nil {
		// The fresh value is still returned; only the cache write is lost.
		m.log.Warn("cache write failed", "endpoint", endpoint, "symbol", symbol, "error", err)
	}
	m.stats.Update(endpoint)
	m.monitored.Add(monitoredKey{Endpoint: endpoint, Symbol: symbol, Key: key, Params: cloneParams(params)})
	return entity.FetchResult{Status: entity.StatusFetched, Value: value}
}

// ClearCache removes cached entries matching the optional filters and returns
// how many durable records were removed. Monitored keys stay monitored, so
// cleared data is re-fetched by the scheduler.
func (m *Manager) ClearCache(ctx context.Context, endpoint, symbol string) (int, error) {
	return m.store.Clear(ctx, endpoint, symbol)
}

// Statistics returns an immutable snapshot of the per-endpoint counters.
func (m *Manager) Statistics() StatsSnapshot {
	return m.stats.Snapshot()
}

// RegisterFetcher installs the fetch function the background scheduler uses
// for an endpoint. Monitored keys of endpoints without a registered fetcher
// are skipped by the scheduler.
func (m *Manager) RegisterFetcher(endpoint string, fetch FetchFunc) {
	m.fetchMu.Lock()
	defer m.fetchMu.Unlock()
	m.fetchers[endpoint] = fetch
}

func (m *Manager) fetcher(endpoint string) FetchFunc {
	m.fetchMu.RLock()
	defer m.fetchMu.RUnlock()
	return m.fetchers[endpoint]
}

// BatchReport summarizes a BatchUpdate pass.
type BatchReport struct {
	Requested   int
	Hits        int
	Fetched     int
	Stale       int
	RateLimited int
	Failed      int
}

// BatchUpdate is a synchronous warm-up pass over the cross product of symbols
// and endpoints, ordered by endpoint priority (most critical first, higher
// weight first within a class). Endpoints without a fetch function are
// skipped. The pass stops early when ctx is cancelled.
func (m *Manager) BatchUpdate(ctx context.Context, symbols, endpoints []string, fetchers map[string]FetchFunc) BatchReport {
	type task struct {
		endpoint string
		symbol   string
		policy   entity.EndpointPolicy
	}

	var tasks []task
	for _, ep := range endpoints {
		if fetchers[ep] == nil {
			continue
		}
		policy := m.policies.Resolve(ep)
		for _, sym := range symbols {
			tasks = append(tasks, task{endpoint: ep, symbol: sym, policy: policy})
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].policy.Priority != tasks[j].policy.Priority {
			return tasks[i].policy.Priority < tasks[j].policy.Priority
		}
		return tasks[i].policy.Weight > tasks[j].policy.Weight
	})

	report := BatchReport{Requested: len(tasks)}
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		res := m.GetOrFetch(ctx, t.endpoint, t.symbol, nil, fetchers[t.endpoint], false)
		switch res.Status {
		case entity.StatusHit:
			report.Hits++
		case entity.StatusFetched:
			report.Fetched++
		case entity.StatusStale:
			report.Stale++
		case entity.StatusRateLimited:
			report.RateLimited++
		case entity.StatusFailed:
			report.Failed++
		}
	}
	return report
}

func cloneParams(params map[string]string) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
