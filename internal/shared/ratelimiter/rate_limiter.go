// Package ratelimiter enforces the call budget toward the external
// market-data API.
package ratelimiter

import (
	"sync"
	"time"
)

// Limit is one sliding-window budget: at most Calls within Period.
type Limit struct {
	Calls  int
	Period time.Duration
}

// SlidingWindowLimiter tracks call timestamps in three independently evaluated
// sliding windows: a global window across all endpoints, a per-endpoint
// window, and a short burst window that prevents call clustering inside the
// broader windows. All window state is guarded by a single mutex since many
// goroutines share one limiter.
type SlidingWindowLimiter struct {
	mu       sync.Mutex
	global   Limit
	endpoint Limit
	burst    Limit

	globalLog    []time.Time
	endpointLogs map[string][]time.Time

	now func() time.Time
}

// New creates a limiter with the given window budgets. The burst window is
// evaluated over the tail of the global call log.
func New(global, endpoint, burst Limit) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		global:       global,
		endpoint:     endpoint,
		burst:        burst,
		endpointLogs: make(map[string][]time.Time),
		now:          time.Now,
	}
}

// CanCall reports whether one more call to endpoint fits every window. When
// denied, the returned duration is the time until the oldest timestamp of the
// first exceeded window leaves that window.
func (l *SlidingWindowLimiter) CanCall(endpoint string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(endpoint, now)

	if wait, full := windowFull(l.globalLog, l.global, now); full {
		return false, wait
	}
	if wait, full := windowFull(l.endpointLogs[endpoint], l.endpoint, now); full {
		return false, wait
	}
	if wait, full := windowFull(tail(l.globalLog, now, l.burst.Period), l.burst, now); full {
		return false, wait
	}
	return true, 0
}

// RecordCall reserves one slot in the global and per-endpoint logs. It must be
// called exactly once per external call attempt, before the call executes, and
// never on cache hits.
func (l *SlidingWindowLimiter) RecordCall(endpoint string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(endpoint, now)
	l.globalLog = append(l.globalLog, now)
	l.endpointLogs[endpoint] = append(l.endpointLogs[endpoint], now)
}

// pruneLocked drops timestamps that have left their windows. Endpoint logs
// emptied by pruning are removed so idle endpoints do not accumulate.
func (l *SlidingWindowLimiter) pruneLocked(endpoint string, now time.Time) {
	l.globalLog = tail(l.globalLog, now, l.global.Period)
	if log, ok := l.endpointLogs[endpoint]; ok {
		if pruned := tail(log, now, l.endpoint.Period); len(pruned) > 0 {
			l.endpointLogs[endpoint] = pruned
		} else {
			delete(l.endpointLogs, endpoint)
		}
	}
}

// tail returns the suffix of log newer than now-period.
func tail(log []time.Time, now time.Time, period time.Duration) []time.Time {
	cutoff := now.Add(-period)
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	return log[i:]
}

// windowFull checks a pruned log against its limit. When the window is full it
// returns the time until the oldest logged call exits the window.
func windowFull(log []time.Time, limit Limit, now time.Time) (time.Duration, bool) {
	if limit.Calls <= 0 || len(log) < limit.Calls {
		return 0, false
	}
	wait := log[0].Add(limit.Period).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait, true
}
