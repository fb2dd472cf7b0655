// Package entity defines the domain types of the market-data cache layer.
package entity

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// secretParams are request parameters that never become part of a cache key.
// Two requests that differ only in credentials address the same data.
var secretParams = map[string]struct{}{
	"apikey":        {},
	"api_key":       {},
	"api_secret":    {},
	"secret":        {},
	"token":         {},
	"access_token":  {},
	"password":      {},
	"authorization": {},
	"signature":     {},
}

// CacheEntry is one cached value. Entries are immutable once written; a
// refresh writes a new entry under the same key, there are no merge semantics.
type CacheEntry struct {
	Key       string
	Endpoint  string
	Symbol    string
	Value     json.RawMessage
	WrittenAt time.Time
	TTL       time.Duration
	Priority  PriorityClass
}

// ExpiresAt returns the point at which the entry stops being fresh. Expiry is
// always WrittenAt plus the TTL of the policy in force at write time.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.WrittenAt.Add(e.TTL)
}

// Age returns how long ago the entry was written.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.WrittenAt)
}

// Expired reports whether the entry is past its TTL at the given time.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt())
}

// BuildKey derives the deterministic cache key for a request. Parameters are
// sorted so that map iteration order cannot change the key, and credential
// parameters are dropped entirely.
func BuildKey(endpoint, symbol string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(SafeKeyPart(endpoint))
	b.WriteByte(':')
	b.WriteString(SafeKeyPart(symbol))

	if len(params) == 0 {
		return b.String()
	}

	names := make([]string, 0, len(params))
	for name := range params {
		if _, secret := secretParams[strings.ToLower(name)]; secret {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b.WriteByte(':')
		b.WriteString(SafeKeyPart(name))
		b.WriteByte('=')
		b.WriteString(SafeKeyPart(params[name]))
	}
	return b.String()
}

// SafeKeyPart escapes characters that are problematic for Redis keys and for
// the key's own field separators.
func SafeKeyPart(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "*", "_")
	return s
}
