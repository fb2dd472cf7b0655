// Package usecase implements the caching, rate-limiting and background
// refresh logic of the market-data access layer.
package usecase

import (
	"time"

	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/domain/entity"
)

// Fallback policy for endpoints with no registered entry.
const (
	DefaultTTL      = 15 * time.Minute
	DefaultPriority = entity.PriorityMedium
)

// defaultPolicies covers the market-data endpoints the indicator and scoring
// pipelines consume. TTLs follow data volatility; priority governs background
// refresh order, not expiry.
var defaultPolicies = []entity.EndpointPolicy{
	{Endpoint: "ticker", TTL: 2 * time.Minute, Priority: entity.PriorityCritical, Weight: 10},
	{Endpoint: "orderbook", TTL: time.Minute, Priority: entity.PriorityCritical, Weight: 10},
	{Endpoint: "ohlcv", TTL: 5 * time.Minute, Priority: entity.PriorityHigh, Weight: 8},
	{Endpoint: "liquidations", TTL: 5 * time.Minute, Priority: entity.PriorityHigh, Weight: 7},
	{Endpoint: "funding_rate", TTL: 10 * time.Minute, Priority: entity.PriorityHigh, Weight: 6},
	{Endpoint: "open_interest", TTL: 10 * time.Minute, Priority: entity.PriorityMedium, Weight: 5},
	{Endpoint: "long_short_ratio", TTL: 15 * time.Minute, Priority: entity.PriorityMedium, Weight: 4},
	{Endpoint: "exchange_status", TTL: 30 * time.Minute, Priority: entity.PriorityLow, Weight: 2},
	{Endpoint: "symbol_info", TTL: 24 * time.Hour, Priority: entity.PriorityLow, Weight: 1},
}

// PolicyRegistry maps endpoint names to their cache policies. It is built
// once at startup and immutable thereafter.
type PolicyRegistry struct {
	policies map[string]entity.EndpointPolicy
	fallback entity.EndpointPolicy
}

// NewPolicyRegistry builds a registry from the built-in table plus overrides.
// An override with an endpoint name already in the table replaces it. A
// zero-value fallback means the package defaults.
func NewPolicyRegistry(fallback entity.EndpointPolicy, overrides ...entity.EndpointPolicy) *PolicyRegistry {
	if fallback == (entity.EndpointPolicy{}) {
		fallback = entity.EndpointPolicy{TTL: DefaultTTL, Priority: DefaultPriority}
	}
	if fallback.TTL <= 0 {
		fallback.TTL = DefaultTTL
	}
	if !fallback.Priority.Valid() {
		fallback.Priority = DefaultPriority
	}

	policies := make(map[string]entity.EndpointPolicy, len(defaultPolicies)+len(overrides))
	for _, p := range defaultPolicies {
		policies[p.Endpoint] = p
	}
	for _, p := range overrides {
		policies[p.Endpoint] = p
	}
	return &PolicyRegistry{policies: policies, fallback: fallback}
}

// Resolve returns the policy for an endpoint. Unknown endpoints get the
// fallback policy, so Resolve is total.
func (r *PolicyRegistry) Resolve(endpoint string) entity.EndpointPolicy {
	if p, ok := r.policies[endpoint]; ok {
		return p
	}
	p := r.fallback
	p.Endpoint = endpoint
	return p
}
