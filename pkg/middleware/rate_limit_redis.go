package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/auditdesk/auditdesk/pkg/logger"
	"github.com/auditdesk/auditdesk/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimitMiddleware counts sign-in attempts in fixed windows shared by
// every desk process. A window admits rps*window+burst attempts. When Redis
// cannot be reached the attempt is let through.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	limit := int64(rps*float64(secs)) + int64(burst)
	retryAfter := strconv.FormatInt(secs, 10)

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("rl:%s:%d", limitKey(c), time.Now().Unix()/secs)

		var incr *redis.IntCmd
		_, err := client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.Incr(ctx, key)
			p.Expire(ctx, key, time.Duration(secs+1)*time.Second)
			return nil
		})
		if err != nil {
			logger.Warnf("login rate limit unavailable, letting attempt through: %v", err)
			c.Next()
			return
		}
		if incr.Val() > limit {
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many sign-in attempts, try again later"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
