package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type bucket struct {
	count int
	until time.Time
}

// RateLimit allows at most limit requests per client IP within each fixed
// window.
func RateLimit(limit int, per time.Duration) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*bucket)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		b, ok := buckets[ip]
		if !ok || now.After(b.until) {
			b = &bucket{until: now.Add(per)}
			buckets[ip] = b
		}
		if b.count >= limit {
			mu.Unlock()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please try again later",
			})
			return
		}
		b.count++
		mu.Unlock()

		c.Next()
	}
}
