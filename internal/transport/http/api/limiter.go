package apihttp

import (
	"net/http"
	"sync"

	"payguard/internal/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiter hands out one token bucket per client IP.
type clientLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newClientLimiter(perMin, burst int) *clientLimiter {
	if perMin <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		limit:   rate.Limit(float64(perMin) / 60.0),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *clientLimiter) allow(client string) bool {
	l.mu.Lock()
	lim, ok := l.buckets[client]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.buckets[client] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// middleware rejects requests over the client's budget with 429.
func (l *clientLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		client := c.ClientIP()
		if !l.allow(client) {
			logger.Warnf("HTTP rate limited %s %s ip=%s", c.Request.Method, c.Request.URL.Path, client)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
