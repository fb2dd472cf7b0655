package router

import (
	"github.com/gin-gonic/gin"

	cachehandler "github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/transport/handler"
	platformhandler "github.com/DansiDanutz/ZmartBot-sub009/internal/platform/http/handler"
	jwtmw "github.com/DansiDanutz/ZmartBot-sub009/internal/platform/jwt"
)

func NewRouter(cache *cachehandler.CacheHandler) *gin.Engine {
	r := gin.Default()

	// No auth required
	r.GET("/healthz", platformhandler.Health)
	r.HEAD("/healthz", platformhandler.Health)
	r.GET("/cache/stats", cache.Stats)

	// Mutating operations require a bearer token
	admin := r.Group("/")
	admin.Use(jwtmw.AuthRequired())
	{
		admin.DELETE("/cache", cache.Clear)
		admin.POST("/cache/refresh", cache.Refresh)
	}

	return r
}
