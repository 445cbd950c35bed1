package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/0xhank/casper/internal/infrastructure/config"
)

const (
	// Idle clients are evicted so the per-IP map does not grow without
	// bound under churning addresses.
	clientIdleTTL = 3 * time.Minute
	sweepInterval = time.Minute
)

// RateLimit creates a per-IP rate limiting middleware from service
// configuration. Generation requests are model-call heavy, so the defaults
// are deliberately low.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	return rateLimit(cfg, time.Now)
}

func rateLimit(cfg config.RateLimitConfig, clock func() time.Time) gin.HandlerFunc {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu        sync.Mutex
		clients   = make(map[string]*client)
		lastSweep = clock()
	)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := clock()

		mu.Lock()
		if now.Sub(lastSweep) > sweepInterval {
			for addr, entry := range clients {
				if now.Sub(entry.lastSeen) > clientIdleTTL {
					delete(clients, addr)
				}
			}
			lastSweep = now
		}

		entry, exists := clients[ip]
		if !exists {
			entry = &client{
				limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
			}
			clients[ip] = entry
		}
		entry.lastSeen = now
		mu.Unlock()

		if !entry.limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
