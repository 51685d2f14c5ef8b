package middleware

import (
	"net/http"
	"time"

	rediskey "order_payment/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit is a sliding window counter, atomic in Redis.
// KEYS[1]=window key; ARGV: now, window start, window seconds, member, limit.
// Returns the count in the window, or -1 when the request is over the limit.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit limits each caller account (or client IP when anonymous) on
// one route scope. Redis errors let the request through.
func RedisRateLimit(rdb *rd.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetHeader(HeaderAccountID)
		if caller == "" {
			caller = "ip:" + c.ClientIP()
		}
		key := rediskey.RateLimitKey(scope, caller)

		now := time.Now()
		windowSec := int64(window.Seconds())
		if windowSec < 1 {
			windowSec = 1
		}
		// unique per request; concurrent requests may share a timestamp
		member := caller + ":" + uuid.NewString()

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			now.Unix(), now.Unix()-windowSec, windowSec, member, limit).Int()
		if err != nil {
			c.Next()
			return
		}
		if res < 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "too many requests, retry later",
			})
			return
		}
		c.Next()
	}
}
