package entity

import (
	"encoding/json"
	"time"
)

// FetchStatus tags the outcome of a GetOrFetch call so callers can
// pattern-match instead of inspecting errors.
type FetchStatus int

const (
	// StatusHit means a fresh cache entry was returned without touching the
	// rate limiter or the external API.
	StatusHit FetchStatus = iota
	// StatusFetched means the value was just fetched from the external API.
	StatusFetched
	// StatusStale means an expired entry was served because no fresh data was
	// obtainable (rate limited, fetch failed, or the caller gave up waiting).
	StatusStale
	// StatusRateLimited means the call was denied and no fallback value
	// exists. Wait carries the time until a slot frees.
	StatusRateLimited
	// StatusFailed means the fetch failed (or was cancelled) and no fallback
	// value exists.
	StatusFailed
)

func (s FetchStatus) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusFetched:
		return "fetched"
	case StatusStale:
		return "stale"
	case StatusRateLimited:
		return "rate_limited"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchResult is the tagged result of a GetOrFetch call.
type FetchResult struct {
	Status FetchStatus
	Value  json.RawMessage
	// Wait is set when Status is StatusRateLimited: time until retry can succeed.
	Wait time.Duration
	// Err carries the underlying cause for StatusRateLimited and StatusFailed.
	Err error
}

// OK reports whether the result carries a usable value, fresh or stale.
func (r FetchResult) OK() bool {
	return r.Status == StatusHit || r.Status == StatusFetched || r.Status == StatusStale
}
