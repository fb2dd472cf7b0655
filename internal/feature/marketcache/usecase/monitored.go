package usecase

import "sync"

// monitoredKey is one (endpoint, symbol) pair the background scheduler keeps
// fresh. The request parameters are kept so the scheduler can re-issue the
// same fetch.
type monitoredKey struct {
	Endpoint string
	Symbol   string
	Key      string
	Params   map[string]string
}

// monitoredSet is the concurrent set of monitored keys. Any caller may add;
// only the scheduler iterates. Keys are never removed automatically.
type monitoredSet struct {
	mu   sync.RWMutex
	keys map[string]monitoredKey
}

func newMonitoredSet() *monitoredSet {
	return &monitoredSet{keys: make(map[string]monitoredKey)}
}

func (s *monitoredSet) Add(k monitoredKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[k.Key] = k
}

func (s *monitoredSet) Snapshot() []monitoredKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]monitoredKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	return out
}

func (s *monitoredSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
