package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/domain/entity"
)

// refreshState is the scheduler's view of one monitored key.
type refreshState int

const (
	// stateFresh: age below the refresh-ahead threshold, nothing to do.
	stateFresh refreshState = iota
	// stateStaleCandidate: near or past expiry, queued for refresh.
	stateStaleCandidate
	// stateRefreshing: a refresh has been dispatched this cycle.
	stateRefreshing
)

// refreshCandidate is one queued entry of a refresh cycle.
type refreshCandidate struct {
	key    monitoredKey
	policy entity.EndpointPolicy
	age    time.Duration
}

// StartScheduler launches the single background refresh loop. It returns
// ErrSchedulerRunning when a loop is already active.
func (m *Manager) StartScheduler() error {
	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	if m.schedDone != nil {
		return ErrSchedulerRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.schedStop = cancel
	m.schedDone = done
	go m.schedulerLoop(ctx, done)
	return nil
}

// StopScheduler cancels the background loop and waits for it to exit. It is a
// no-op when no loop is running.
func (m *Manager) StopScheduler() {
	m.schedMu.Lock()
	cancel, done := m.schedStop, m.schedDone
	m.schedStop, m.schedDone = nil, nil
	m.schedMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Manager) schedulerLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.log.Info("background refresh scheduler started",
		"interval", m.cfg.SchedulerInterval, "batch_size", m.cfg.SchedulerBatchSize)

	ticker := time.NewTicker(m.cfg.SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("background refresh scheduler stopped")
			return
		case <-ticker.C:
			m.runRefreshCycle(ctx)
		}
	}
}

// runRefreshCycle scans all monitored keys, queues those whose age has passed
// the refresh-ahead threshold, and refreshes the most urgent ones within the
// batch and rate budget. Failures are logged and retried next cycle; nothing
// escapes this loop. The number of successful refreshes is returned.
func (m *Manager) runRefreshCycle(ctx context.Context) int {
	now := m.now()

	var candidates []refreshCandidate
	for _, mk := range m.monitored.Snapshot() {
		if m.fetcher(mk.Endpoint) == nil {
			continue
		}
		policy := m.policies.Resolve(mk.Endpoint)

		age := policy.TTL * 2 // vanished entries are maximally urgent
		if e, found := m.store.GetStale(ctx, mk.Key); found {
			age = e.Age(now)
			if float64(age) < m.cfg.RefreshAheadFactor*float64(e.TTL) {
				m.setState(mk.Key, stateFresh)
				continue
			}
		}
		m.setState(mk.Key, stateStaleCandidate)
		candidates = append(candidates, refreshCandidate{key: mk, policy: policy, age: age})
	}

	// Most urgent first: priority class ascending, then age descending.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].policy.Priority != candidates[j].policy.Priority {
			return candidates[i].policy.Priority < candidates[j].policy.Priority
		}
		return candidates[i].age > candidates[j].age
	})
	if len(candidates) > m.cfg.SchedulerBatchSize {
		candidates = candidates[:m.cfg.SchedulerBatchSize]
	}

	refreshed := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if allowed, wait := m.limiter.CanCall(c.key.Endpoint); !allowed {
			// Stays a stale candidate; retried next cycle.
			m.log.Debug("refresh deferred, rate limited",
				"endpoint", c.key.Endpoint, "symbol", c.key.Symbol, "wait", wait)
			continue
		}

		m.setState(c.key.Key, stateRefreshing)
		res := m.GetOrFetch(ctx, c.key.Endpoint, c.key.Symbol, c.key.Params, m.fetcher(c.key.Endpoint), true)
		if res.Status == entity.StatusFetched {
			m.setState(c.key.Key, stateFresh)
			refreshed++
			continue
		}
		m.setState(c.key.Key, stateStaleCandidate)
		m.log.Warn("background refresh failed",
			"endpoint", c.key.Endpoint, "symbol", c.key.Symbol,
			"status", res.Status.String(), "error", res.Err)
	}

	if len(candidates) > 0 {
		m.log.Debug("refresh cycle finished",
			"candidates", len(candidates), "refreshed", refreshed, "monitored", m.monitored.Len())
	}
	return refreshed
}

// RefreshNow runs one refresh cycle synchronously and returns the number of
// entries refreshed. Used by the operations API.
func (m *Manager) RefreshNow(ctx context.Context) int {
	return m.runRefreshCycle(ctx)
}

func (m *Manager) setState(key string, s refreshState) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.states[key] = s
}

// stateOf is used by tests to observe state-machine transitions.
func (m *Manager) stateOf(key string) refreshState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.states[key]
}
