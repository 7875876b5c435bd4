package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LoginThrottle caps login attempts per client address within a fixed
// window. Redis errors let the request through.
func LoginThrottle(client *redis.Client, limit int, window time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || limit <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("login:attempts:%s", c.ClientIP())
		pipe := client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Warn().Err(err).Msg("login throttle unavailable")
			c.Next()
			return
		}

		if incr.Val() > int64(limit) {
			ttl, err := client.TTL(ctx, key).Result()
			if err != nil || ttl <= 0 {
				ttl = window
			}
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too_many_login_attempts"})
			return
		}

		c.Next()
	}
}
