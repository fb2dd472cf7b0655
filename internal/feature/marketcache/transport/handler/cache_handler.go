package handler

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/transport/http/dto"
	"github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/usecase"
)

// CacheOps is the slice of the cache manager the operations endpoints need.
// Following Go convention: interfaces are defined by the consumer (handler),
// not the provider (usecase).
type CacheOps interface {
	Statistics() usecase.StatsSnapshot
	ClearCache(ctx context.Context, endpoint, symbol string) (int, error)
	RefreshNow(ctx context.Context) int
}

// CacheHandler serves the cache operations endpoints.
type CacheHandler struct {
	ops CacheOps
}

func NewCacheHandler(ops CacheOps) *CacheHandler {
	return &CacheHandler{ops: ops}
}

// Stats returns the per-endpoint statistics snapshot, endpoints sorted by
// name for stable output.
func (h *CacheHandler) Stats(c *gin.Context) {
	snap := h.ops.Statistics()

	items := make([]dto.EndpointStatsItem, 0, len(snap.Endpoints))
	for endpoint, es := range snap.Endpoints {
		items = append(items, toItem(endpoint, es))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Endpoint < items[j].Endpoint })

	c.JSON(http.StatusOK, dto.StatsResponse{
		Endpoints: items,
		Total:     toItem("", snap.Total),
	})
}

// Clear removes cached entries matching the optional endpoint/symbol query
// filters and reports how many durable records were removed.
func (h *CacheHandler) Clear(c *gin.Context) {
	removed, err := h.ops.ClearCache(c.Request.Context(), c.Query("endpoint"), c.Query("symbol"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ClearResponse{Removed: removed})
}

// Refresh triggers one background refresh cycle synchronously.
func (h *CacheHandler) Refresh(c *gin.Context) {
	refreshed := h.ops.RefreshNow(c.Request.Context())
	c.JSON(http.StatusOK, dto.RefreshResponse{Refreshed: refreshed})
}

func toItem(endpoint string, es usecase.EndpointStats) dto.EndpointStatsItem {
	return dto.EndpointStatsItem{
		Endpoint:         endpoint,
		Hits:             es.Hits,
		Misses:           es.Misses,
		Updates:          es.Updates,
		RateLimitDenials: es.RateLimitDenials,
		StaleServes:      es.StaleServes,
		HitRate:          es.HitRate,
	}
}
