package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/alefiaschi96/networth-gateway/pkg/metrics"
)

// RateLimiter enforces a token-bucket per-key limit in memory.
// Key selection: the device-id cookie when present (one browser, one
// bucket), otherwise the client IP.
type RateLimiter struct {
	limiters     sync.Map // map[string]*rate.Limiter
	rps          float64
	burst        int
	deviceCookie string
}

func NewRateLimiter(rps float64, burst int, deviceCookie string) *RateLimiter {
	if deviceCookie == "" {
		deviceCookie = "deviceId"
	}
	return &RateLimiter{rps: rps, burst: burst, deviceCookie: deviceCookie}
}

// getLimiter returns (and lazily creates) a token-bucket limiter for the given key
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	v, ok := rl.limiters.Load(key)
	if ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Limit(rl.rps), rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, lim)
	return actual.(*rate.Limiter)
}

func (rl *RateLimiter) key(c *gin.Context) string {
	if v, err := c.Cookie(rl.deviceCookie); err == nil && v != "" {
		return "device:" + v
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// Middleware returns the Gin handler enforcing the limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getLimiter(rl.key(c)).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
