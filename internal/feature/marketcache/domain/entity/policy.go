package entity

import "time"

// PriorityClass ranks endpoints for background refresh order. A lower value
// means more urgent, independent of TTL.
type PriorityClass int

const (
	PriorityCritical PriorityClass = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

// Valid reports whether p is one of the defined classes.
func (p PriorityClass) Valid() bool {
	return p >= PriorityCritical && p <= PriorityLow
}

func (p PriorityClass) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// EndpointPolicy describes how one endpoint's data is cached and refreshed.
// Policies are read-only at runtime.
type EndpointPolicy struct {
	Endpoint string
	TTL      time.Duration
	Priority PriorityClass
	Weight   int
}
