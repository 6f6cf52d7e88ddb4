package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/filemgr/internal/service"
)

// Metrics records request counts and latency per route template. Requests
// to skipPaths (probes and scrapes) are served but not recorded, and paths
// without a route share the "unmatched" label to keep cardinality bounded.
func Metrics(metricsSvc *service.MetricsService, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths)+1)
	skip["/metrics"] = struct{}{}
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ignored := skip[c.Request.URL.Path]; ignored || metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
