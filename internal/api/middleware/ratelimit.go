package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/CedricCorazza/vpn-user-portal/internal/config"
)

// RateLimitMiddleware limits requests per client IP using a token bucket.
// Stale limiters are evicted so the map does not grow without bound.
func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.Security.RateLimitEnabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	type clientLimiter struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu       sync.Mutex
		limiters = make(map[string]*clientLimiter)
	)

	window := cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	requests := cfg.Security.RateLimitRequests
	if requests <= 0 {
		requests = 60
	}
	limit := rate.Every(window / time.Duration(requests))

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		client, exists := limiters[ip]
		if !exists {
			client = &clientLimiter{limiter: rate.NewLimiter(limit, requests)}
			limiters[ip] = client
		}
		client.lastSeen = time.Now()

		if len(limiters) > 10000 {
			for key, entry := range limiters {
				if time.Since(entry.lastSeen) > 10*window {
					delete(limiters, key)
				}
			}
		}
		mu.Unlock()

		if !client.limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}
