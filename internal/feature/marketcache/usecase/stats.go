package usecase

import (
	"sync"
	"sync/atomic"
)

// endpointCounters holds the per-endpoint counters. Fields are atomics so
// increments on the request path never take a lock.
type endpointCounters struct {
	hits        atomic.Int64
	misses      atomic.Int64
	updates     atomic.Int64
	denials     atomic.Int64
	staleServes atomic.Int64
}

// Stats aggregates per-endpoint cache statistics. The map is guarded by an
// RWMutex; the counters themselves are lock-free.
type Stats struct {
	mu        sync.RWMutex
	endpoints map[string]*endpointCounters
}

func NewStats() *Stats {
	return &Stats{endpoints: make(map[string]*endpointCounters)}
}

func (s *Stats) counters(endpoint string) *endpointCounters {
	s.mu.RLock()
	c, ok := s.endpoints[endpoint]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.endpoints[endpoint]; ok {
		return c
	}
	c = &endpointCounters{}
	s.endpoints[endpoint] = c
	return c
}

func (s *Stats) Hit(endpoint string)        { s.counters(endpoint).hits.Add(1) }
func (s *Stats) Miss(endpoint string)       { s.counters(endpoint).misses.Add(1) }
func (s *Stats) Update(endpoint string)     { s.counters(endpoint).updates.Add(1) }
func (s *Stats) Denial(endpoint string)     { s.counters(endpoint).denials.Add(1) }
func (s *Stats) StaleServe(endpoint string) { s.counters(endpoint).staleServes.Add(1) }

// Reset drops all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = make(map[string]*endpointCounters)
}

// EndpointStats is an immutable view of one endpoint's counters.
type EndpointStats struct {
	Hits             int64
	Misses           int64
	Updates          int64
	RateLimitDenials int64
	StaleServes      int64
	HitRate          float64
}

// StatsSnapshot is an immutable copy of all counters at one instant.
type StatsSnapshot struct {
	Endpoints map[string]EndpointStats
	Total     EndpointStats
}

// Snapshot copies the current counters. The hit rate is hits/(hits+misses),
// zero when nothing was looked up yet.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{Endpoints: make(map[string]EndpointStats, len(s.endpoints))}
	for endpoint, c := range s.endpoints {
		es := EndpointStats{
			Hits:             c.hits.Load(),
			Misses:           c.misses.Load(),
			Updates:          c.updates.Load(),
			RateLimitDenials: c.denials.Load(),
			StaleServes:      c.staleServes.Load(),
		}
		es.HitRate = hitRate(es.Hits, es.Misses)
		snap.Endpoints[endpoint] = es

		snap.Total.Hits += es.Hits
		snap.Total.Misses += es.Misses
		snap.Total.Updates += es.Updates
		snap.Total.RateLimitDenials += es.RateLimitDenials
		snap.Total.StaleServes += es.StaleServes
	}
	snap.Total.HitRate = hitRate(snap.Total.Hits, snap.Total.Misses)
	return snap
}

func hitRate(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
