package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/techknowlogia/core/internal/pkg/response"
	"go.uber.org/zap"
)

const rateLimitWindow = time.Minute

// Counter is the subset of the redis client the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RateLimit allows limit requests per IP per minute under the given key
// prefix. It fails open when the counter is unavailable.
func RateLimit(counter Counter, prefix string, limit int, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return rateLimit(counter, prefix, limit, log, time.Now)
}

func rateLimit(counter Counter, prefix string, limit int, log *zap.Logger, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || limit <= 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		t := now()
		window := t.Truncate(rateLimitWindow)
		key := fmt.Sprintf("tk:rate_limit:%s:%s:%d", prefix, ip, window.Unix())

		count, err := counter.Incr(ctx, key)
		if err != nil {
			log.Warn("rate limit counter unavailable", zap.Error(err))
			c.Next()
			return
		}

		if count == 1 {
			if err := counter.Expire(ctx, key, rateLimitWindow+time.Second); err != nil {
				log.Warn("rate limit expire failed", zap.String("key", key), zap.Error(err))
			}
		}

		if count > int64(limit) {
			retry := int(window.Add(rateLimitWindow).Sub(t).Seconds()) + 1
			response.TooManyRequests(c, strconv.Itoa(retry))
			return
		}

		c.Next()
	}
}
