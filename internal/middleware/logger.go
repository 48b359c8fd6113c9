package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPObserver records request latency by route.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// Logger returns a Gin middleware that logs each request using zap and
// reports it to obs when one is given.
func Logger(log *zap.Logger, obs HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		if obs != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			obs.ObserveHTTP(c.Request.Method, route, status, elapsed)
		}

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
			zap.String("ip", c.ClientIP()),
		)
	}
}
