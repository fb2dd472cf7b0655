// Package dto defines the JSON shapes of the cache operations API.
package dto

// EndpointStatsItem is one endpoint's counters in a statistics response.
type EndpointStatsItem struct {
	Endpoint         string  `json:"endpoint"`
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	Updates          int64   `json:"updates"`
	RateLimitDenials int64   `json:"rate_limit_denials"`
	StaleServes      int64   `json:"stale_serves"`
	HitRate          float64 `json:"hit_rate"`
}

// StatsResponse is the body of GET /cache/stats.
type StatsResponse struct {
	Endpoints []EndpointStatsItem `json:"endpoints"`
	Total     EndpointStatsItem   `json:"total"`
}

// ClearResponse is the body of DELETE /cache.
type ClearResponse struct {
	Removed int `json:"removed"`
}

// RefreshResponse is the body of POST /cache/refresh.
type RefreshResponse struct {
	Refreshed int `json:"refreshed"`
}
