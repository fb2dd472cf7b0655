package usecase

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors of the market-data cache layer. Storage backends report a
// missing or self-healed record as ErrNotFound; the orchestrator wraps
// external failures so callers can distinguish "never fetched" from
// "rate-limited with no fallback".
var (
	ErrNotFound         = errors.New("cache entry not found")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrSchedulerRunning = errors.New("scheduler already running")
)

// RateLimitError reports a denied external call and how long until the
// blocking window frees a slot.
type RateLimitError struct {
	Endpoint string
	Wait     time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Endpoint, e.Wait)
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// FetchError wraps the underlying transport or API error of a failed fetch.
type FetchError struct {
	Endpoint string
	Symbol   string
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Endpoint, e.Symbol, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrFetchFailed) match.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}
